package extract

import "context"

// Resolution is the outcome of walking a selector chain.
type Resolution struct {
	SelectorUsed string
	RawValue     string
	Index        int
	WasFallback  bool
	Attempts     int
}

// resolveChain tries each selector in order and returns on the first match.
// Resolution is strictly ordered: once a selector succeeds, later entries
// are never consulted, even if they would have matched "better". Evaluator
// errors (bad selector syntax, script failure) count as a miss for that
// entry so resolution degrades gracefully through the rest of the chain.
// An empty chain reports not-found with zero attempts.
func resolveChain(ctx context.Context, ev Evaluator, chain []string, field string) (Resolution, bool) {
	res := Resolution{}
	for i, selector := range chain {
		res.Attempts = i + 1
		val, found, err := ev.Query(ctx, selector, field)
		if err != nil || !found {
			continue
		}
		res.SelectorUsed = selector
		res.RawValue = val
		res.Index = i
		res.WasFallback = i > 0
		return res, true
	}
	return res, false
}
