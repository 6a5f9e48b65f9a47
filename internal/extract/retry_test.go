package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryRecoversAfterMutation(t *testing.T) {
	page := &mutablePage{fakePage: newFakePage()}
	// lazy-loaded content shows up after the second mutation (scroll+wait)
	page.onMutate = func(n int, p *fakePage) {
		if n == 2 {
			p.elements[".reviews"] = "(2,847 reviews)"
		}
	}

	res, attempts := NewEngine().ExtractWithRetry(context.Background(),
		mustCompile(t, Request{Chain: []string{".reviews"}}),
		page,
		&RetryPolicy{Strategies: []Strategy{
			{Type: StrategyScroll},
			{Type: StrategyWait, DelayMS: 10},
			{Type: StrategyReload},
		}})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, MethodPrimary, res.Method)
	assert.Equal(t, "(2,847 reviews)", res.Value.Text())
	assert.Empty(t, res.Error)
	assert.Equal(t, []StrategyType{StrategyScroll, StrategyWait}, page.applied)
}

func TestRetryExhaustsAttemptBudget(t *testing.T) {
	page := &mutablePage{fakePage: newFakePage()}

	res, attempts := NewEngine().ExtractWithRetry(context.Background(),
		mustCompile(t, Request{Chain: []string{".never"}}),
		page,
		&RetryPolicy{MaxAttempts: 2, Strategies: []Strategy{
			{Type: StrategyScroll},
			{Type: StrategyWait, DelayMS: 10},
			{Type: StrategyReload},
		}})

	assert.Equal(t, 2, attempts)
	assert.Equal(t, MethodFailed, res.Method)
	assert.Contains(t, res.Error, ErrRetryExhausted.Error())
	assert.Contains(t, res.Error, ErrSelectorNotFound.Error())
	// budget of 2 allows exactly one mutation after the initial attempt
	assert.Len(t, page.applied, 1)
}

func TestRetryExhaustsStrategyList(t *testing.T) {
	page := &mutablePage{fakePage: newFakePage()}

	res, attempts := NewEngine().ExtractWithRetry(context.Background(),
		mustCompile(t, Request{Chain: []string{".never"}}),
		page,
		&RetryPolicy{MaxAttempts: 10, Strategies: []Strategy{{Type: StrategyScroll}}})

	assert.Equal(t, 2, attempts)
	assert.Contains(t, res.Error, ErrRetryExhausted.Error())
}

func TestRetryStaticEvaluatorStopsImmediately(t *testing.T) {
	// fakePage is not a Mutator, so there is nothing to retry against
	page := newFakePage()

	res, attempts := NewEngine().ExtractWithRetry(context.Background(),
		mustCompile(t, Request{Chain: []string{".never"}}),
		page,
		&RetryPolicy{Strategies: []Strategy{{Type: StrategyScroll}, {Type: StrategyReload}}})

	assert.Equal(t, 1, attempts)
	assert.Contains(t, res.Error, ErrRetryExhausted.Error())
	assert.Equal(t, MethodFailed, res.Method)
}

func TestRetryNilPolicyUsesDefaults(t *testing.T) {
	page := newFakePage()
	page.elements["#ok"] = "present"

	res, attempts := NewEngine().ExtractWithRetry(context.Background(),
		mustCompile(t, Request{Chain: []string{"#ok"}}), page, nil)

	assert.Equal(t, 1, attempts)
	assert.True(t, res.Usable())
}

func TestRetryValidationFailureTriggersRetry(t *testing.T) {
	page := &mutablePage{fakePage: newFakePage()}
	page.elements[".price"] = "0"
	page.onMutate = func(n int, p *fakePage) {
		p.elements[".price"] = "129.99"
	}

	res, attempts := NewEngine().ExtractWithRetry(context.Background(),
		mustCompile(t, Request{
			Chain:      []string{".price"},
			Validation: &Rule{Type: "number", Range: []float64{1, 10000}},
		}),
		page,
		&RetryPolicy{Strategies: []Strategy{{Type: StrategyReload}}})

	assert.Equal(t, 2, attempts)
	require.True(t, res.Usable())
	assert.Equal(t, "129.99", res.Value.Text())
	assert.Empty(t, res.ValidationErrors)
}

func TestApplyStrategyUnknownType(t *testing.T) {
	page := &mutablePage{fakePage: newFakePage()}
	err := applyStrategy(context.Background(), page, Strategy{Type: "teleport"})
	assert.Error(t, err)
}
