// Package run executes ordered extraction steps against one page, rolls
// their outcomes into a run status, and wires the supporting cast: the
// selector cache, run history, and failure artifact capture.
package run

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagesentry/pagesentry/internal/artifacts"
	"github.com/pagesentry/pagesentry/internal/evaluate"
	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/shared/id"
	"github.com/pagesentry/pagesentry/internal/shared/value"
	"github.com/pagesentry/pagesentry/internal/store"
)

// minRecallReliability gates cached selectors: below this the cache entry
// is ignored rather than tried first.
const minRecallReliability = 0.5

// Recorder receives run-level events for metrics collection. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordRun(status string, duration time.Duration)
	RecordStep(outcome string)
	RecordCacheHit()
	RecordCacheMiss()
	RecordCapture(mode string)
}

// Report is the caller-facing summary of a run.
type Report struct {
	RunID     string                 `json:"runId"`
	URL       string                 `json:"url"`
	Status    Status                 `json:"status"`
	Passed    bool                   `json:"passed"`
	Steps     []StepResult           `json:"steps"`
	Extracted map[string]value.Value `json:"extracted"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Degraded  int `json:"degraded"`
	Attempts  int `json:"attempts"`
	Retries   int `json:"retries"`

	ArtifactDir string `json:"artifactDir,omitempty"`
	DurationMS  int64  `json:"durationMs"`
}

// Runner executes runs sequentially. One runner serves many runs; each run
// owns its evaluator for the duration.
type Runner struct {
	engine   *extract.Engine
	store    *store.Store
	capturer *artifacts.Capturer
	logger   *zap.Logger
	policy   Policy
	retry    *extract.RetryPolicy
	recorder Recorder
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore attaches the selector cache and run log.
func WithStore(s *store.Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithCapturer attaches failure artifact capture.
func WithCapturer(c *artifacts.Capturer) RunnerOption {
	return func(r *Runner) { r.capturer = c }
}

// WithRunnerLogger attaches a zap logger.
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithPolicy sets the pass/fail policy.
func WithPolicy(p Policy) RunnerOption {
	return func(r *Runner) { r.policy = p }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithDefaultRetry sets the retry policy used by steps without their own.
func WithDefaultRetry(p *extract.RetryPolicy) RunnerOption {
	return func(r *Runner) { r.retry = p }
}

// NewRunner creates a runner.
func NewRunner(engine *extract.Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine: engine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the steps in order against ev. It returns an error only for
// configuration and bookkeeping failures; step-level failures are folded
// into the report.
func (r *Runner) Run(ctx context.Context, steps []Step, ev extract.Evaluator) (*Report, error) {
	compiled, err := compileSteps(steps)
	if err != nil {
		return nil, err
	}

	runID := id.NewRunID().String()
	pageURL, err := ev.URL(ctx)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("run_id", runID), zap.String("url", pageURL))
	logger.Info("run started", zap.Int("steps", len(steps)))
	started := time.Now()

	if r.store != nil {
		if err := r.store.StartRun(ctx, runID, pageURL, len(steps)); err != nil {
			return nil, err
		}
	}

	report := &Report{
		RunID:     runID,
		URL:       pageURL,
		Steps:     make([]StepResult, 0, len(compiled)),
		Extracted: make(map[string]value.Value),
	}

	for i, step := range compiled {
		sr, artifactDir := r.runStep(ctx, runID, pageURL, step, ev, logger)
		report.Steps = append(report.Steps, sr)
		if artifactDir != "" {
			report.ArtifactDir = artifactDir
		}

		if sr.Success {
			report.Succeeded++
			report.Extracted[step.Key] = sr.Value
			if sr.WasFallback {
				report.Degraded++
			}
		} else {
			report.Failed++
		}
		report.Attempts += sr.Attempts
		if sr.Attempts > 1 {
			report.Retries += sr.Attempts - 1
		}
		if r.recorder != nil {
			outcome := "failure"
			if sr.Success {
				outcome = "success"
			}
			r.recorder.RecordStep(outcome)
		}

		if r.store != nil {
			if err := r.store.Progress(ctx, runID, i+1); err != nil {
				logger.Warn("progress update failed", zap.Error(err))
			}
		}
	}

	report.Status = Aggregate(report.Steps)
	report.Passed = r.policy.Passes(report.Status)
	report.DurationMS = time.Since(started).Milliseconds()

	if r.recorder != nil {
		r.recorder.RecordRun(string(report.Status), time.Since(started))
	}

	if r.store != nil {
		if err := r.store.CompleteRun(ctx, runID, store.RunOutcome{
			Status:      string(report.Status),
			Succeeded:   report.Succeeded,
			Failed:      report.Failed,
			Degraded:    report.Degraded,
			Attempts:    report.Attempts,
			Retries:     report.Retries,
			ArtifactDir: report.ArtifactDir,
		}); err != nil {
			logger.Warn("run completion not recorded", zap.Error(err))
		}
	}

	logger.Info("run finished",
		zap.String("status", string(report.Status)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int64("duration_ms", report.DurationMS))

	return report, nil
}

func (r *Runner) runStep(ctx context.Context, runID, pageURL string, step compiledStep, ev extract.Evaluator, logger *zap.Logger) (StepResult, string) {
	started := time.Now()

	if len(step.WaitFor) > 0 {
		// compileSteps guarantees a positive timeout; an unbounded wait on a
		// selector that never appears would hang the run
		waitCtx, cancel := context.WithTimeout(ctx, step.WaitTimeout)
		defer cancel()
		if sel, err := evaluate.WaitForAny(waitCtx, ev, step.WaitFor, 0); err != nil {
			logger.Debug("wait-for selectors never appeared",
				zap.String("step", step.Key), zap.Error(err))
		} else {
			logger.Debug("wait-for selector appeared",
				zap.String("step", step.Key), zap.String("selector", sel))
		}
	}

	req, cached, injected := r.withCachedSelector(ctx, step, pageURL, logger)

	policy := step.Retry
	if policy == nil {
		policy = r.retry
	}
	res, attempts := r.engine.ExtractWithRetry(ctx, req, ev, policy)

	// when the injected cached selector lost and one of the step's own
	// selectors matched, the outcome is scored against the step's chain:
	// the caller's index-0 selector is still a primary hit
	if injected && res.SelectorUsed != "" && res.SelectorUsed != cached.Selector {
		for i, sel := range step.Request.Chain {
			if sel == res.SelectorUsed {
				res.RescoreAt(i)
				break
			}
		}
	}

	sr := StepResult{
		Key:              step.Key,
		Required:         step.Required,
		Success:          res.Usable(),
		Value:            res.Value,
		Confidence:       res.Confidence,
		ConfidenceLevel:  res.ConfidenceLevel,
		Method:           res.Method,
		SelectorUsed:     res.SelectorUsed,
		WasFallback:      res.WasFallback,
		Attempts:         attempts,
		ValidationErrors: res.ValidationErrors,
		Error:            res.Error,
		DurationMS:       time.Since(started).Milliseconds(),
	}

	r.recordOutcome(ctx, step, pageURL, cached, sr, logger)

	artifactDir := ""
	if !sr.Success && step.Required {
		artifactDir = r.captureFailure(ctx, runID, pageURL, step, res, ev, logger)
	}

	return sr, artifactDir
}

// withCachedSelector prepends the domain's learned selector for this step,
// when one exists and has held up. The returned cached entry, if any, is
// used afterwards to record hit or miss; injected reports whether the
// executed chain carries an extra leading selector the step did not name.
func (r *Runner) withCachedSelector(ctx context.Context, step compiledStep, pageURL string, logger *zap.Logger) (*extract.Compiled, *store.CachedSelector, bool) {
	if r.store == nil {
		return step.compiled, nil, false
	}

	cached, err := r.store.Recall(ctx, step.Key, pageURL)
	if err != nil {
		logger.Warn("selector recall failed", zap.String("step", step.Key), zap.Error(err))
		return step.compiled, nil, false
	}
	if cached == nil {
		return step.compiled, nil, false
	}
	// below the threshold the entry is left alone: not tried, not penalized
	if cached.Reliability < minRecallReliability {
		return step.compiled, nil, false
	}
	for _, sel := range step.Request.Chain {
		if sel == cached.Selector {
			return step.compiled, cached, false
		}
	}

	req := step.Request
	req.Chain = append([]string{cached.Selector}, req.Chain...)
	compiled, err := req.Compile()
	if err != nil {
		// cached selector itself cannot break compilation; the original
		// request already compiled, so fall back to it
		logger.Warn("cached selector rejected", zap.String("selector", cached.Selector), zap.Error(err))
		return step.compiled, cached, false
	}
	logger.Debug("trying cached selector first",
		zap.String("step", step.Key), zap.String("selector", cached.Selector))
	return compiled, cached, true
}

func (r *Runner) recordOutcome(ctx context.Context, step compiledStep, pageURL string, cached *store.CachedSelector, sr StepResult, logger *zap.Logger) {
	if r.store == nil {
		return
	}

	if cached != nil && r.recorder != nil {
		if cached.Selector == sr.SelectorUsed {
			r.recorder.RecordCacheHit()
		} else {
			r.recorder.RecordCacheMiss()
		}
	}

	// record the cached miss before Learn replaces the row's selector
	if cached != nil && cached.Selector != sr.SelectorUsed {
		if err := r.store.Fail(ctx, step.Key, cached.Selector, pageURL); err != nil {
			logger.Warn("selector failure not recorded", zap.Error(err))
		}
	}
	if sr.Success && sr.SelectorUsed != "" {
		if err := r.store.Learn(ctx, step.Key, sr.SelectorUsed, pageURL); err != nil {
			logger.Warn("selector learn failed", zap.Error(err))
		}
	}
}

func (r *Runner) captureFailure(ctx context.Context, runID, pageURL string, step compiledStep, res *extract.Result, ev extract.Evaluator, logger *zap.Logger) string {
	if r.capturer == nil {
		return ""
	}
	src, ok := ev.(artifacts.Source)
	if !ok {
		return ""
	}

	bundle, err := r.capturer.Capture(ctx, src, artifacts.Failure{
		RunID:          runID,
		StepKey:        step.Key,
		URL:            pageURL,
		FailedSelector: res.SelectorUsed,
		TriedSelectors: step.Request.Chain,
		Error:          res.Error,
	})
	if err != nil {
		logger.Warn("artifact capture failed", zap.String("step", step.Key), zap.Error(err))
		return ""
	}

	for _, saved := range bundle.Captures {
		if r.recorder != nil {
			r.recorder.RecordCapture(string(saved.Mode))
		}
		if r.store != nil {
			if err := r.store.AddCapture(ctx, runID, string(saved.Mode), saved.Path, saved.Size); err != nil {
				logger.Warn("capture not recorded", zap.Error(err))
			}
		}
	}
	return bundle.Dir
}
