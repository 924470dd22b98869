package domain

import "context"

// Category is a supported question category. The zero value means the
// inbound text did not match any known category.
type Category string

const (
	CategoryUnknown              Category = ""
	CategoryReadingComprehension Category = "RC"
	CategorySentenceCorrection   Category = "SC"
	CategoryCriticalReasoning    Category = "CR"
	CategoryProblemSolving       Category = "PS"
	CategoryDataSufficiency      Category = "DS"
)

// Categories lists every dispatchable category in display order.
var Categories = []Category{
	CategoryReadingComprehension,
	CategorySentenceCorrection,
	CategoryCriticalReasoning,
	CategoryProblemSolving,
	CategoryDataSufficiency,
}

// DisplayName returns the human-readable category name.
func (c Category) DisplayName() string {
	switch c {
	case CategoryReadingComprehension:
		return "Reading Comprehension"
	case CategorySentenceCorrection:
		return "Sentence Correction"
	case CategoryCriticalReasoning:
		return "Critical Reasoning"
	case CategoryProblemSolving:
		return "Problem Solving"
	case CategoryDataSufficiency:
		return "Data Sufficiency"
	default:
		return "Unknown"
	}
}

// Question is one renderable corpus record, sourced fresh per request.
type Question struct {
	ID           string
	Category     Category
	Source       string
	Text         string
	Answers      []string
	Explanations []string
}

// PublishedAsset is the durable result of one render-and-publish run. It
// lives only for the duration of a single reply.
type PublishedAsset struct {
	URL      string
	Category Category
}

// ContentProvider returns up to count questions for a category, picked
// uniformly at random without replacement. Returns ErrNotFound when the
// category has no dispatchable questions.
type ContentProvider interface {
	Fetch(ctx context.Context, category Category, count int) ([]Question, error)
}

// Renderer turns an HTML document into image bytes. Failures wrap ErrRender.
type Renderer interface {
	Render(ctx context.Context, htmlBody string) ([]byte, error)
}

// Publisher durably stores image bytes under the given asset name and
// returns a stable public URL. Failures wrap ErrPublish.
type Publisher interface {
	Publish(ctx context.Context, name string, image []byte) (string, error)
}
