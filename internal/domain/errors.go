package domain

import "errors"

// Error taxonomy. Poll-level errors decide whether the service loop retries
// or terminates; pipeline errors are isolated to the message that caused
// them. All of them are matched with errors.Is after %w wrapping.
var (
	// ErrAuth means the platform rejected our credentials (401/403-class).
	// Fatal: the service loop terminates and surfaces it to the operator.
	ErrAuth = errors.New("authentication rejected")

	// ErrTransient covers network failures and 5xx/429 responses. The loop
	// retries the poll with capped exponential backoff.
	ErrTransient = errors.New("transient upstream failure")

	// ErrProtocol means the upstream response could not be parsed. Treated
	// like ErrTransient for retry purposes but logged distinctly.
	ErrProtocol = errors.New("malformed upstream response")

	// ErrNotFound means the requested category has no dispatchable questions.
	ErrNotFound = errors.New("no questions in category")

	// ErrRender means the HTML-to-image renderer failed or timed out.
	ErrRender = errors.New("render failed")

	// ErrPublish means the image could not be uploaded to the asset host.
	ErrPublish = errors.New("publish failed")
)
