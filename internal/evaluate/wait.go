package evaluate

import (
	"context"
	"fmt"
	"time"

	"github.com/pagesentry/pagesentry/internal/extract"
)

// DefaultPollInterval is the wait-for-selector polling cadence.
const DefaultPollInterval = 250 * time.Millisecond

// WaitForAny polls until at least one of the selectors matches an element
// and returns the first selector that did. The deadline comes from ctx;
// interval <= 0 uses the default. Evaluation errors on individual selectors
// do not abort the wait, a later poll may still succeed.
func WaitForAny(ctx context.Context, ev extract.Evaluator, selectors []string, interval time.Duration) (string, error) {
	if len(selectors) == 0 {
		return "", fmt.Errorf("no selectors to wait for")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, sel := range selectors {
			n, err := ev.Count(ctx, sel)
			if err == nil && n > 0 {
				return sel, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for selectors: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
