package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StrategyType names an environment-mutating retry action.
type StrategyType string

const (
	StrategyScroll   StrategyType = "scroll"
	StrategyWait     StrategyType = "wait"
	StrategyReload   StrategyType = "reload"
	StrategyViewport StrategyType = "viewport"
)

// Strategy is one declared retry action. DelayMS applies to wait; Width
// and Height apply to viewport.
type Strategy struct {
	Type    StrategyType `json:"type"`
	DelayMS int          `json:"delayMs,omitempty"`
	Width   int          `json:"width,omitempty"`
	Height  int          `json:"height,omitempty"`
}

// RetryPolicy bounds the retry loop: an ordered strategy list and a total
// attempt budget (first attempt included).
type RetryPolicy struct {
	MaxAttempts int        `json:"maxAttempts,omitempty"`
	Strategies  []Strategy `json:"strategies,omitempty"`
}

const (
	defaultMaxAttempts    = 3
	defaultWaitDelay      = 1500 * time.Millisecond
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
)

// retry state machine
type retryState int

const (
	stateAttempting retryState = iota
	stateMutating
	stateSucceeded
	stateExhausted
)

// ExtractWithRetry runs the pipeline and, while the result stays unusable
// (miss, validation failure, or confidence below the usable floor), applies
// the next unused strategy and reruns the whole pipeline, page validation
// included. Strategies are strictly sequential: mutate, settle, re-validate,
// re-extract. Each strategy application counts as a fresh attempt even when
// the same strategy type repeats in the list.
//
// Returns the final result and the number of attempts consumed. When the
// strategy list or attempt budget runs out the last result is surfaced with
// the retry-exhausted error attached.
func (e *Engine) ExtractWithRetry(ctx context.Context, req *Compiled, ev Evaluator, policy *RetryPolicy) (*Result, int) {
	maxAttempts := defaultMaxAttempts
	var strategies []Strategy
	if policy != nil {
		if policy.MaxAttempts > 0 {
			maxAttempts = policy.MaxAttempts
		}
		strategies = policy.Strategies
	}

	state := stateAttempting
	attempts := 1
	res := e.Extract(ctx, req, ev)

	for !res.Usable() {
		if attempts >= maxAttempts || len(strategies) == 0 {
			state = stateExhausted
			break
		}

		mutator, ok := ev.(Mutator)
		if !ok {
			// static documents cannot be mutated; retrying would observe
			// the same markup
			state = stateExhausted
			break
		}

		next := strategies[0]
		strategies = strategies[1:]

		if err := applyStrategy(ctx, mutator, next); err != nil {
			e.logger.Warn("retry strategy failed",
				zap.String("strategy", string(next.Type)),
				zap.Error(err))
		}
		if e.observer != nil {
			e.observer.ObserveRetry(string(next.Type))
		}

		attempts++
		res = e.Extract(ctx, req, ev)
	}

	if res.Usable() {
		state = stateSucceeded
	}

	if state == stateExhausted {
		if res.Error == "" {
			res.Error = ErrRetryExhausted.Error()
		} else {
			res.Error = fmt.Sprintf("%s: %s", ErrRetryExhausted.Error(), res.Error)
		}
		e.logger.Debug("retry exhausted", zap.Int("attempts", attempts))
	}
	return res, attempts
}

// applyStrategy performs one environment mutation through the mutator.
func applyStrategy(ctx context.Context, m Mutator, s Strategy) error {
	switch s.Type {
	case StrategyScroll:
		return m.Scroll(ctx)
	case StrategyWait:
		delay := defaultWaitDelay
		if s.DelayMS > 0 {
			delay = time.Duration(s.DelayMS) * time.Millisecond
		}
		return m.Wait(ctx, delay)
	case StrategyReload:
		return m.Reload(ctx)
	case StrategyViewport:
		width, height := s.Width, s.Height
		if width <= 0 {
			width = defaultViewportWidth
		}
		if height <= 0 {
			height = defaultViewportHeight
		}
		return m.Viewport(ctx, width, height)
	default:
		return fmt.Errorf("unknown retry strategy %q", s.Type)
	}
}
