package run

import (
	"fmt"
	"time"

	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// defaultWaitTimeout bounds a wait-for poll when the step names none.
const defaultWaitTimeout = 10 * time.Second

// Step is one named extraction within a run. Key doubles as the field name
// under which learned selectors are cached.
type Step struct {
	Key      string          `json:"key"`
	Required bool            `json:"required,omitempty"`
	Request  extract.Request `json:"request"`

	// Retry overrides the run-level retry policy for this step.
	Retry *extract.RetryPolicy `json:"retry,omitempty"`

	// WaitFor blocks extraction until one of these selectors appears,
	// bounded by WaitTimeout.
	WaitFor     []string      `json:"waitFor,omitempty"`
	WaitTimeout time.Duration `json:"-"`
}

// StepResult is the run-level view of one step's outcome.
type StepResult struct {
	Key              string        `json:"key"`
	Required         bool          `json:"required"`
	Success          bool          `json:"success"`
	Value            value.Value   `json:"value"`
	Confidence       float64       `json:"confidence"`
	ConfidenceLevel  extract.Level `json:"confidenceLevel"`
	Method           extract.Method `json:"method"`
	SelectorUsed     string        `json:"selectorUsed,omitempty"`
	WasFallback      bool          `json:"wasFallback"`
	Attempts         int           `json:"attempts"`
	ValidationErrors []string      `json:"validationErrors,omitempty"`
	Error            string        `json:"error,omitempty"`
	DurationMS       int64         `json:"durationMs"`
}

// compiledStep pairs a step with its executable request.
type compiledStep struct {
	Step
	compiled *extract.Compiled
}

// compileSteps validates every step up front so a malformed request fails
// the run before any page interaction.
func compileSteps(steps []Step) ([]compiledStep, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("run has no steps")
	}

	seen := make(map[string]bool, len(steps))
	out := make([]compiledStep, 0, len(steps))
	for i, s := range steps {
		if s.Key == "" {
			return nil, fmt.Errorf("step[%d]: missing key", i)
		}
		if seen[s.Key] {
			return nil, fmt.Errorf("step[%d]: duplicate key %q", i, s.Key)
		}
		seen[s.Key] = true

		c, err := s.Request.Compile()
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", s.Key, err)
		}
		if len(s.WaitFor) > 0 && s.WaitTimeout <= 0 {
			s.WaitTimeout = defaultWaitTimeout
		}
		out = append(out, compiledStep{Step: s, compiled: c})
	}
	return out, nil
}
