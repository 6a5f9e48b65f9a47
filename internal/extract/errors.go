package extract

import "errors"

// Failure taxonomy. These are carried inside Result.Error as values, never
// thrown out of the pipeline; callers that need to branch can use
// errors.Is against the step error the runner surfaces.
var (
	// ErrSelectorNotFound means no chain entry matched and no fallback
	// produced a value. Evaluator script errors fold into this at the
	// chain level rather than escalating.
	ErrSelectorNotFound = errors.New("no selector in chain matched")

	// ErrPageValidationFailed means the page context did not match the
	// declared rules before extraction was attempted.
	ErrPageValidationFailed = errors.New("page validation failed")

	// ErrWrongPageDetected is the PageValidationFailed subtype for url or
	// title mismatches, which almost always mean a redirect or an A/B bucket
	// served an entirely different page.
	ErrWrongPageDetected = errors.New("wrong page detected")

	// ErrValueValidationFailed means the extracted value violated a
	// declared validation rule.
	ErrValueValidationFailed = errors.New("value validation failed")

	// ErrRetryExhausted means the strategy list or attempt budget was spent
	// without producing a usable result.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)
