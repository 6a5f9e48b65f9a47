package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// Observer receives pipeline events for metrics collection. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveExtraction(method string, confidence float64)
	ObserveRetry(strategy string)
}

// Engine runs the extraction pipeline. It is stateless across requests and
// safe for concurrent use as long as each call gets its own evaluator.
type Engine struct {
	logger      *zap.Logger
	observer    Observer
	transformer *Transformer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an extraction engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:      zap.NewNop(),
		transformer: NewTransformer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract performs one full pipeline pass: page validation, chain
// resolution, script/pattern fallback, transform, value validation,
// confidence scoring. It never returns an error; all failures are terminal
// results with diagnostics.
func (e *Engine) Extract(ctx context.Context, req *Compiled, ev Evaluator) *Result {
	res := &Result{Value: value.Null()}

	// Pre-extraction guard. The outcome stays on the result either way so
	// the caller can audit which checks ran.
	res.PageValidation = validatePage(ctx, ev, req.Request.PageValidation)
	if !res.PageValidation.Passed {
		res.Method = MethodFailed
		if res.PageValidation.wrongPage() {
			res.Error = ErrWrongPageDetected.Error()
		} else {
			res.Error = ErrPageValidationFailed.Error()
		}
		res.finalize(0, 0)
		e.observe(res)
		e.logger.Debug("page validation failed",
			zap.Strings("failed_checks", res.PageValidation.FailedChecks))
		return res
	}

	resolution, found := resolveChain(ctx, ev, req.Chain, req.field)
	res.Attempts = resolution.Attempts

	var raw string
	candidateScore := 0.0

	switch {
	case found:
		raw = resolution.RawValue
		res.SelectorUsed = resolution.SelectorUsed
		res.WasFallback = resolution.WasFallback
		if resolution.Index == 0 {
			res.Method = MethodPrimary
		} else {
			res.Method = MethodFallback
		}

	case req.FallbackScript != "" && e.runScript(ctx, req, ev, res):
		// script fallback populated res.Value directly; it is scored like a
		// top-ranked pattern result since no selector vouches for it
		raw = res.Value.Text()
		res.Method = MethodRegexRanked
		candidateScore = 1.0

	case req.pattern != nil:
		text, err := ev.Text(ctx)
		if err != nil {
			e.logger.Debug("page text unavailable for pattern fallback", zap.Error(err))
		}
		res.Candidates = extractCandidates(text, req.pattern, req.rank)
		if len(res.Candidates) > 0 {
			top := res.Candidates[0]
			raw = top.Value
			res.Method = MethodRegexRanked
			candidateScore = top.Score
		}
	}

	if res.Method == "" {
		res.Method = MethodFailed
		res.Error = ErrSelectorNotFound.Error()
		res.finalize(0, 0)
		e.observe(res)
		return res
	}

	if res.Value.IsNull() {
		res.Value = value.String(raw)
	}

	if req.transform != nil {
		transformed, err := e.transformer.Apply(ctx, req.transform, raw)
		if err != nil {
			// runtime transform failures are diagnostics, not aborts: the
			// raw value is still returned alongside the error
			res.ValidationErrors = append(res.ValidationErrors, "transform: "+err.Error())
		} else {
			res.Value = transformed
		}
	}

	if ok, msg := checkValue(res.Value, req.Request.Validation, req.rulePattern); !ok {
		res.ValidationErrors = append(res.ValidationErrors, msg)
		res.Error = ErrValueValidationFailed.Error()
	}

	res.finalize(resolution.Index, candidateScore)
	e.observe(res)
	e.logger.Debug("extraction complete",
		zap.String("method", string(res.Method)),
		zap.String("selector", res.SelectorUsed),
		zap.Float64("confidence", res.Confidence),
		zap.Int("attempts", res.Attempts))
	return res
}

func (e *Engine) runScript(ctx context.Context, req *Compiled, ev Evaluator, res *Result) bool {
	runner, ok := ev.(ScriptRunner)
	if !ok {
		return false
	}
	v, err := runner.RunScript(ctx, req.FallbackScript)
	if err != nil || v.IsNull() {
		// script failures fold into SelectorNotFound at the chain level
		e.logger.Debug("fallback script failed", zap.Error(err))
		return false
	}
	res.Value = v
	return true
}

func (e *Engine) observe(res *Result) {
	if e.observer != nil {
		e.observer.ObserveExtraction(string(res.Method), res.Confidence)
	}
}
