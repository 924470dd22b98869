package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gmatbot/internal/domain"
)

// --- fakes ---

type fakeProvider struct {
	questions []domain.Question
	err       error
	gotCat    domain.Category
	gotCount  int
}

func (f *fakeProvider) Fetch(_ context.Context, cat domain.Category, count int) ([]domain.Question, error) {
	f.gotCat = cat
	f.gotCount = count
	return f.questions, f.err
}

type fakeRenderer struct {
	image   []byte
	err     error
	gotHTML string
}

func (f *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	f.gotHTML = html
	return f.image, f.err
}

type fakePublisher struct {
	url      string
	err      error
	gotName  string
	gotImage []byte
}

func (f *fakePublisher) Publish(_ context.Context, name string, image []byte) (string, error) {
	f.gotName = name
	f.gotImage = image
	return f.url, f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func newTestPipeline(p *fakeProvider, r *fakeRenderer, pub *fakePublisher) *Pipeline {
	return NewPipeline(PipelineConfig{
		Provider:  p,
		Renderer:  r,
		Publisher: pub,
		Logger:    testLogger(),
		Now:       fixedNow,
	})
}

func TestDispatch_HappyPath(t *testing.T) {
	provider := &fakeProvider{questions: []domain.Question{{
		ID:       "ps-101",
		Category: domain.CategoryProblemSolving,
		Source:   "https://example.com/ps-101",
		Text:     "What is 2+2?",
		Answers:  []string{"3", "4", "5", "6", "7"},
	}}}
	renderer := &fakeRenderer{image: []byte("png-bytes")}
	publisher := &fakePublisher{url: "https://host/x.png"}

	asset, q, err := newTestPipeline(provider, renderer, publisher).Dispatch(context.Background(), domain.CategoryProblemSolving)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if asset.URL != "https://host/x.png" {
		t.Fatalf("asset URL = %q", asset.URL)
	}
	if asset.Category != domain.CategoryProblemSolving {
		t.Fatalf("asset category = %q", asset.Category)
	}
	if q.ID != "ps-101" {
		t.Fatalf("question ID = %q", q.ID)
	}
	if provider.gotCat != domain.CategoryProblemSolving || provider.gotCount != 1 {
		t.Fatalf("fetch called with (%q, %d)", provider.gotCat, provider.gotCount)
	}
	if !strings.Contains(renderer.gotHTML, "What is 2+2?") {
		t.Fatal("rendered document missing question text")
	}
	if string(publisher.gotImage) != "png-bytes" {
		t.Fatalf("published image = %q", publisher.gotImage)
	}
	wantName := fmt.Sprintf("question_ps-101_%d.png", fixedNow().Unix())
	if publisher.gotName != wantName {
		t.Fatalf("asset name = %q, expected %q", publisher.gotName, wantName)
	}
}

func TestDispatch_FetchErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("nothing there: %w", domain.ErrNotFound)}
	_, _, err := newTestPipeline(provider, &fakeRenderer{}, &fakePublisher{}).Dispatch(context.Background(), domain.CategoryDataSufficiency)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatch_EmptyFetchIsNotFound(t *testing.T) {
	_, _, err := newTestPipeline(&fakeProvider{}, &fakeRenderer{}, &fakePublisher{}).Dispatch(context.Background(), domain.CategoryDataSufficiency)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatch_RenderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{questions: []domain.Question{{ID: "q1"}}}
	renderer := &fakeRenderer{err: fmt.Errorf("browser gone: %w", domain.ErrRender)}
	publisher := &fakePublisher{}

	_, _, err := newTestPipeline(provider, renderer, publisher).Dispatch(context.Background(), domain.CategoryUnknown)
	if !errors.Is(err, domain.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if publisher.gotName != "" {
		t.Fatal("publish must not run after a render failure")
	}
}

func TestDispatch_PublishErrorPropagates(t *testing.T) {
	provider := &fakeProvider{questions: []domain.Question{{ID: "q1"}}}
	renderer := &fakeRenderer{image: []byte("x")}
	publisher := &fakePublisher{err: fmt.Errorf("upload refused: %w", domain.ErrPublish)}

	_, _, err := newTestPipeline(provider, renderer, publisher).Dispatch(context.Background(), domain.CategoryUnknown)
	if !errors.Is(err, domain.ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}
}
