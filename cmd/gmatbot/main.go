package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gmatbot/internal/bot"
	"gmatbot/internal/channel"
	"gmatbot/internal/config"
	"gmatbot/internal/corpus"
	"gmatbot/internal/domain"
	"gmatbot/internal/journal"
	"gmatbot/internal/metrics"
	"gmatbot/internal/publish"
	"gmatbot/internal/render"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "gmatbot",
		Short: "gmatbot: GMAT practice questions over chat",
		Long:  "gmatbot long-polls a chat platform, renders random GMAT questions to images and replies with them.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.gmatbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			logger.Info("next: fill in the platform token and publish settings, then run 'gmatbot doctor'")
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until the configured duration elapses",
		Long:  "Polls the configured chat platform for category requests and replies with rendered questions. Press Ctrl+C to stop early.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.General.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messenger, err := buildMessenger(cfg)
	if err != nil {
		return err
	}

	provider := corpus.NewClient(corpus.ClientConfig{
		BaseURL: cfg.Corpus.BaseURL,
		Timeout: time.Duration(cfg.Corpus.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	renderer := render.NewChrome(render.ChromeConfig{
		Width:      cfg.Render.Width,
		Quality:    cfg.Render.Quality,
		Headless:   cfg.Render.Headless,
		ProfileDir: cfg.Render.ProfileDir,
		Timeout:    time.Duration(cfg.Render.TimeoutSeconds) * time.Second,
		Settle:     time.Duration(cfg.Render.SettleMillis) * time.Millisecond,
		Logger:     logger,
	})

	if cfg.Publish.Repo == "" {
		return fmt.Errorf("publish.repo is not configured; run 'gmatbot doctor'")
	}
	publisher, err := publish.NewGitHub(publish.GitHubConfig{
		Repo:       cfg.Publish.Repo,
		ReleaseTag: cfg.Publish.ReleaseTag,
		Token:      cfg.Publish.Token,
		APIBase:    cfg.Publish.APIBase,
		UploadBase: cfg.Publish.UploadBase,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	var journalStore bot.Journal
	if cfg.Journal.Enabled {
		store, err := journal.NewStore(cfg.Journal.DBPath, logger)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer store.Close()
		journalStore = store
	}

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.Port)
	}

	interp, err := bot.NewInterpreter(cfg.Categories.AliasFile, logger)
	if err != nil {
		return fmt.Errorf("category aliases: %w", err)
	}

	pipeline := bot.NewPipeline(bot.PipelineConfig{
		Provider:  provider,
		Renderer:  renderer,
		Publisher: publisher,
		Logger:    logger,
	})

	loop := bot.NewLoop(bot.LoopConfig{
		Messenger:    messenger,
		Dispatcher:   pipeline,
		Interpreter:  interp,
		Journal:      journalStore,
		Logger:       logger,
		RunFor:       time.Duration(cfg.General.RunMinutes) * time.Minute,
		PollTimeout:  time.Duration(cfg.General.PollTimeoutSeconds) * time.Second,
		HelpText:     cfg.General.HelpText,
		Caption:      cfg.General.Caption,
		ResumeOffset: cfg.General.ResumeOffset,
	})

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted, shutting down")
		return nil
	}
	return err
}

func buildMessenger(cfg *config.Config) (domain.Messenger, error) {
	switch cfg.Channels.Platform {
	case "zalo":
		if cfg.Channels.Zalo.Token == "" {
			return nil, fmt.Errorf("channels.zalo.token is not configured")
		}
		return channel.NewZalo(channel.ZaloConfig{
			Token:   cfg.Channels.Zalo.Token,
			APIBase: cfg.Channels.Zalo.APIBase,
			Logger:  logger,
		}), nil
	case "telegram":
		if cfg.Channels.Telegram.Token == "" {
			return nil, fmt.Errorf("channels.telegram.token is not configured")
		}
		return channel.NewTelegram(channel.TelegramConfig{
			Token:  cfg.Channels.Telegram.Token,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Channels.Platform)
	}
}

func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		logger.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
