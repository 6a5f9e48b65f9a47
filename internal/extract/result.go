package extract

import "github.com/pagesentry/pagesentry/internal/shared/value"

// Result is the terminal outcome of one extraction pipeline pass. Every
// result, successful or failed, carries enough trail to be explainable
// without rerunning: the method, the selector used, chain attempts, every
// candidate considered and every page check run.
type Result struct {
	Value            value.Value  `json:"value"`
	Confidence       float64      `json:"confidence"`
	ConfidenceLevel  Level        `json:"confidenceLevel"`
	Method           Method       `json:"method"`
	SelectorUsed     string       `json:"selectorUsed,omitempty"`
	WasFallback      bool         `json:"wasFallback"`
	Attempts         int          `json:"attempts"`
	Candidates       []Candidate  `json:"candidates,omitempty"`
	ValidationErrors []string     `json:"validationErrors,omitempty"`
	PageValidation   *PageOutcome `json:"pageValidation,omitempty"`
	IsReliable       bool         `json:"isReliable"`
	IsUsable         bool         `json:"isUsable"`
	Error            string       `json:"error,omitempty"`
}

// Usable reports whether the result needs no retry: a method succeeded, the
// value passed validation, and confidence cleared the usable floor.
func (r *Result) Usable() bool {
	return r.Method != MethodFailed &&
		len(r.ValidationErrors) == 0 &&
		r.Confidence >= UsableThreshold
}

// RescoreAt recomputes method, fallback flag, confidence and level as if
// the matching selector sat at index idx of the chain. Callers that inject
// extra selectors ahead of a request's own chain use it to report the
// outcome in terms of the chain the request actually named.
func (r *Result) RescoreAt(idx int) {
	if r.Method != MethodPrimary && r.Method != MethodFallback {
		return
	}
	if idx == 0 {
		r.Method = MethodPrimary
	} else {
		r.Method = MethodFallback
	}
	r.WasFallback = idx > 0
	r.finalize(idx, 0)
}

// finalize derives confidence, level and the convenience booleans.
func (r *Result) finalize(chainIndex int, candidateScore float64) {
	pagePassed := r.PageValidation == nil || r.PageValidation.Passed
	r.Confidence, r.ConfidenceLevel = scoreConfidence(r.Method, chainIndex, candidateScore, pagePassed)
	r.IsReliable = r.ConfidenceLevel == LevelReliable
	r.IsUsable = r.Confidence >= UsableThreshold
}
