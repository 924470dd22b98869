package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gmatbot/internal/domain"
	"gmatbot/internal/metrics"
	"gmatbot/internal/render"
)

// Dispatcher produces one published question asset for a category request.
type Dispatcher interface {
	Dispatch(ctx context.Context, category domain.Category) (domain.PublishedAsset, domain.Question, error)
}

// Pipeline is the fetch → render → publish chain behind every photo reply.
// It holds no state between dispatches; every call sources a fresh question.
type Pipeline struct {
	provider  domain.ContentProvider
	renderer  domain.Renderer
	publisher domain.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type PipelineConfig struct {
	Provider  domain.ContentProvider
	Renderer  domain.Renderer
	Publisher domain.Publisher
	Logger    *slog.Logger
	Now       func() time.Time // injectable for tests; defaults to time.Now
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		provider:  cfg.Provider,
		renderer:  cfg.Renderer,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Dispatch fetches one random question for the category, renders it to an
// image and publishes the image. The returned asset URL is durable; the
// question rides along so the caller can build a caption. Any step failing
// returns the step's sentinel error unchanged; Dispatch never retries.
func (p *Pipeline) Dispatch(ctx context.Context, category domain.Category) (domain.PublishedAsset, domain.Question, error) {
	questions, err := p.provider.Fetch(ctx, category, 1)
	if err != nil {
		return domain.PublishedAsset{}, domain.Question{}, err
	}
	if len(questions) == 0 {
		return domain.PublishedAsset{}, domain.Question{}, fmt.Errorf("no questions for category %q: %w", category, domain.ErrNotFound)
	}
	q := questions[0]

	html, err := render.BuildQuestionHTML(q)
	if err != nil {
		return domain.PublishedAsset{}, q, fmt.Errorf("build document for %s: %v: %w", q.ID, err, domain.ErrRender)
	}

	renderStart := p.now()
	image, err := p.renderer.Render(ctx, html)
	metrics.RenderLatency.Observe(p.now().Sub(renderStart).Seconds())
	if err != nil {
		return domain.PublishedAsset{}, q, err
	}

	name := fmt.Sprintf("question_%s_%d.png", q.ID, p.now().Unix())
	url, err := p.publisher.Publish(ctx, name, image)
	if err != nil {
		return domain.PublishedAsset{}, q, err
	}

	p.logger.Info("question dispatched",
		"question", q.ID,
		"category", string(q.Category),
		"asset", name,
		"url", url)

	return domain.PublishedAsset{URL: url, Category: q.Category}, q, nil
}
