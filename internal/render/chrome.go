package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"gmatbot/internal/domain"

	"github.com/chromedp/chromedp"
)

// Chrome renders HTML documents to PNG with a headless Chrome instance.
// Each render runs in a fresh chromedp context so a crashed tab never
// poisons the next request.
type Chrome struct {
	width      int
	quality    int
	headless   bool
	profileDir string
	timeout    time.Duration
	settle     time.Duration
	logger     *slog.Logger
}

type ChromeConfig struct {
	Width      int           // viewport width in px
	Quality    int           // screenshot quality 1-100
	Headless   bool
	ProfileDir string        // optional Chrome user data directory
	Timeout    time.Duration // per-render budget
	Settle     time.Duration // wait after load for MathJax typesetting
	Logger     *slog.Logger
}

func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.Width <= 0 {
		cfg.Width = 1200
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Chrome{
		width:      cfg.Width,
		quality:    cfg.Quality,
		headless:   cfg.Headless,
		profileDir: cfg.ProfileDir,
		timeout:    cfg.Timeout,
		settle:     cfg.Settle,
		logger:     cfg.Logger,
	}
}

// Render screenshots the full document. Failures wrap domain.ErrRender.
func (c *Chrome) Render(ctx context.Context, htmlBody string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)
	if c.profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.profileDir))
	}
	if c.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, c.timeout)
	defer timeoutCancel()

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlBody))

	start := time.Now()
	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(c.width), 800),
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(c.settle),
		chromedp.FullScreenshot(&buf, c.quality),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome screenshot: %v: %w", err, domain.ErrRender)
	}

	c.logger.Debug("rendered question image",
		"bytes", len(buf),
		"took", time.Since(start),
	)
	return buf, nil
}
