package extract

import (
	"context"
	"time"

	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// Field selects what to pull from a matched element.
const (
	FieldText = "text"
	FieldHTML = "html"
	// FieldAttrPrefix prefixes attribute fields, as in "attr:href".
	FieldAttrPrefix = "attr:"
)

// Evaluator is the query primitive against the current document. It is a
// collaborator: implementations (static goquery documents, live chromedp
// sessions) live outside this package. All calls against one evaluator are
// serialized by the caller; two extraction attempts must never run
// concurrently against the same live page.
type Evaluator interface {
	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// Query resolves a single selector and extracts the given field from
	// the first match. found is false when no element matched; err reports
	// selector syntax or evaluation failures, which chain resolution treats
	// as a miss rather than an abort.
	Query(ctx context.Context, selector, field string) (val string, found bool, err error)

	// Count returns the number of elements matching the selector.
	Count(ctx context.Context, selector string) (int, error)

	// Text returns the visible text of the page.
	Text(ctx context.Context) (string, error)
}

// Mutator applies environment-mutating retry strategies. Live sessions
// implement it; static documents do not, which naturally disables mutating
// retries against fetched markup.
type Mutator interface {
	// Scroll scrolls to the middle of the page.
	Scroll(ctx context.Context) error

	// Wait blocks for the given duration to let async content settle.
	Wait(ctx context.Context, d time.Duration) error

	// Reload performs a full reload and waits for navigation to settle.
	Reload(ctx context.Context) error

	// Viewport resizes the viewport.
	Viewport(ctx context.Context, width, height int) error
}

// ScriptRunner executes an arbitrary script against the page and returns
// its value. Optional: only live sessions support it, and only requests
// with a fallbackScript use it.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string) (value.Value, error)
}
