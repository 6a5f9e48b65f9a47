package run

// Status classifies a whole run's health.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// severity orders statuses for reporting; failed outranks everything.
var severity = map[Status]int{
	StatusSuccess:  0,
	StatusDegraded: 1,
	StatusPartial:  2,
	StatusFailed:   3,
}

// Severity returns the rank used to compare statuses.
func (s Status) Severity() int { return severity[s] }

// Aggregate rolls step outcomes into one status, by precedence:
// any failed required step means failed; any failed step at all means
// partial; any success that needed a fallback means degraded; else success.
func Aggregate(steps []StepResult) Status {
	anyFailed := false
	anyFallback := false

	for _, s := range steps {
		if !s.Success {
			if s.Required {
				return StatusFailed
			}
			anyFailed = true
		} else if s.WasFallback {
			anyFallback = true
		}
	}

	switch {
	case anyFailed:
		return StatusPartial
	case anyFallback:
		return StatusDegraded
	default:
		return StatusSuccess
	}
}

// Policy governs how a status maps to pass/fail for callers that need a
// binary outcome (exit codes, alerting). The reported status itself always
// stays one of the four classes.
type Policy struct {
	DegradedIsSuccess bool `json:"degradedIsSuccess,omitempty"`
}

// Passes reports whether status counts as an overall pass under the policy.
func (p Policy) Passes(s Status) bool {
	if s == StatusSuccess {
		return true
	}
	return s == StatusDegraded && p.DegradedIsSuccess
}
