// Package corpus is the read-only client for the public GMAT question
// database: index.json maps each category code to its question IDs, and
// <id>.json holds one renderable question body.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"gmatbot/internal/domain"
)

// Client fetches questions from the corpus host. Selection randomness is
// injected so tests can pin picks.
type Client struct {
	baseURL string
	client  *http.Client
	rng     *rand.Rand
	logger  *slog.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Rand    *rand.Rand // nil = time-seeded
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  sharedHTTPClient(cfg.Timeout),
		rng:     rng,
		logger:  cfg.Logger,
	}
}

// questionBody is the per-question wire record.
type questionBody struct {
	ID           string   `json:"id"`
	Src          string   `json:"src"`
	Type         string   `json:"type"`
	Question     string   `json:"question"`
	Answers      []string `json:"answers"`
	Explanations []string `json:"explanations"`
}

type pick struct {
	category domain.Category
	id       string
}

// Fetch returns up to count questions picked uniformly at random without
// replacement. CategoryUnknown means "any dispatchable category". Reading
// Comprehension is never dispatched: its upstream records have a different
// shape the renderer cannot handle.
func (c *Client) Fetch(ctx context.Context, category domain.Category, count int) ([]domain.Question, error) {
	if count < 1 {
		count = 1
	}
	if category == domain.CategoryReadingComprehension {
		return nil, fmt.Errorf("category %s is not dispatchable: %w", category, domain.ErrNotFound)
	}

	index, err := c.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []pick
	for _, cat := range domain.Categories {
		if cat == domain.CategoryReadingComprehension {
			continue
		}
		if category != domain.CategoryUnknown && cat != category {
			continue
		}
		for _, id := range index[string(cat)] {
			candidates = append(candidates, pick{category: cat, id: id})
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("category %q has no questions: %w", category, domain.ErrNotFound)
	}

	if count > len(candidates) {
		count = len(candidates)
	}
	order := c.rng.Perm(len(candidates))

	questions := make([]domain.Question, 0, count)
	for _, idx := range order[:count] {
		chosen := candidates[idx]
		q, err := c.fetchQuestion(ctx, chosen)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (c *Client) fetchIndex(ctx context.Context) (map[string][]string, error) {
	url := c.baseURL + "/index.json"
	resp, err := doWithRetry(ctx, c.client, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("fetch corpus index: %v: %w", err, domain.ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch corpus index: HTTP %d: %w", resp.StatusCode, domain.ErrProtocol)
	}

	var index map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("parse corpus index: %v: %w", err, domain.ErrProtocol)
	}
	return index, nil
}

func (c *Client) fetchQuestion(ctx context.Context, chosen pick) (domain.Question, error) {
	url := fmt.Sprintf("%s/%s.json", c.baseURL, chosen.id)
	c.logger.Debug("fetching question", "id", chosen.id, "category", chosen.category)

	resp, err := doWithRetry(ctx, c.client, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, c.logger)
	if err != nil {
		return domain.Question{}, fmt.Errorf("fetch question %s: %v: %w", chosen.id, err, domain.ErrTransient)
	}
	defer resp.Body.Close()

	// A listed question with no body is genuinely missing content; anything
	// else non-200 means the corpus host is misbehaving.
	if resp.StatusCode == http.StatusNotFound {
		return domain.Question{}, fmt.Errorf("fetch question %s: HTTP 404: %w", chosen.id, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Question{}, fmt.Errorf("fetch question %s: HTTP %d: %w", chosen.id, resp.StatusCode, domain.ErrProtocol)
	}

	var body questionBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Question{}, fmt.Errorf("parse question %s: %v: %w", chosen.id, err, domain.ErrProtocol)
	}

	return domain.Question{
		ID:           body.ID,
		Category:     chosen.category,
		Source:       body.Src,
		Text:         body.Question,
		Answers:      body.Answers,
		Explanations: body.Explanations,
	}, nil
}
