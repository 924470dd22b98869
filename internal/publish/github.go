// Package publish uploads rendered images to a durable public host.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gmatbot/internal/domain"
)

// GitHub publishes image bytes as release assets on an existing release and
// returns the asset's browser download URL. It never creates releases:
// a missing release tag is a permanent failure the operator must fix.
//
// Publish makes a single attempt. Replies are at-most-once, so the retry
// decision lives with the caller, which chooses not to.
type GitHub struct {
	owner      string
	repo       string
	tag        string
	token      string
	apiBase    string
	uploadBase string
	client     *http.Client
	logger     *slog.Logger
}

type GitHubConfig struct {
	Repo       string // "owner/name"
	ReleaseTag string
	Token      string
	APIBase    string // default https://api.github.com
	UploadBase string // default https://uploads.github.com
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	parts := strings.Split(cfg.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("publish repo must have the form owner/name, got %q", cfg.Repo)
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.github.com"
	}
	if cfg.UploadBase == "" {
		cfg.UploadBase = "https://uploads.github.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GitHub{
		owner:      parts[0],
		repo:       parts[1],
		tag:        cfg.ReleaseTag,
		token:      cfg.Token,
		apiBase:    cfg.APIBase,
		uploadBase: cfg.UploadBase,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}, nil
}

type releaseInfo struct {
	ID int64 `json:"id"`
}

type assetInfo struct {
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Publish uploads the image and returns its durable public URL.
func (g *GitHub) Publish(ctx context.Context, name string, image []byte) (string, error) {
	release, err := g.lookupRelease(ctx)
	if err != nil {
		return "", err
	}

	uploadURL := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?name=%s",
		g.uploadBase, g.owner, g.repo, release.ID, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("build upload request: %v: %w", err, domain.ErrPublish)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload asset %s: %v: %w", name, err, domain.ErrPublish)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload asset %s: HTTP %d: %s: %w", name, resp.StatusCode, truncate(body, 200), domain.ErrPublish)
	}

	var asset assetInfo
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return "", fmt.Errorf("parse upload response: %v: %w", err, domain.ErrPublish)
	}
	if asset.BrowserDownloadURL == "" {
		return "", fmt.Errorf("upload response for %s has no download URL: %w", name, domain.ErrPublish)
	}

	g.logger.Info("published asset", "name", name, "url", asset.BrowserDownloadURL)
	return asset.BrowserDownloadURL, nil
}

func (g *GitHub) lookupRelease(ctx context.Context) (*releaseInfo, error) {
	lookupURL := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", g.apiBase, g.owner, g.repo, g.tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build release lookup: %v: %w", err, domain.ErrPublish)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup release %s: %v: %w", g.tag, err, domain.ErrPublish)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("release %q does not exist in %s/%s: %w", g.tag, g.owner, g.repo, domain.ErrPublish)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lookup release %s: HTTP %d: %s: %w", g.tag, resp.StatusCode, truncate(body, 200), domain.ErrPublish)
	}

	var release releaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parse release lookup: %v: %w", err, domain.ErrPublish)
	}
	return &release, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
