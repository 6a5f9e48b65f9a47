package extract

import (
	"context"
	"fmt"
	"strings"
)

// PageCheck is one declarative page-context check with its outcome.
type PageCheck struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// PageOutcome is the full result of page validation. Every specified check
// runs regardless of earlier failures so each call yields complete
// diagnostics.
type PageOutcome struct {
	Passed       bool        `json:"passed"`
	Checks       []PageCheck `json:"checks"`
	FailedChecks []string    `json:"failedChecks"`
}

const (
	checkURLContains       = "urlContains"
	checkURLNotContains    = "urlNotContains"
	checkTitleContains     = "titleContains"
	checkTitleNotContains  = "titleNotContains"
	checkRequiredElements  = "requiredElements"
	checkForbiddenElements = "forbiddenElements"
	checkMinContentLength  = "minContentLength"
)

// validatePage runs every declared check against the evaluator. Substring
// checks are case-insensitive. Element checks count matches: required needs
// at least one, forbidden needs exactly zero (the usual CAPTCHA detector).
// Evaluator errors fail the individual check with the error as detail.
func validatePage(ctx context.Context, ev Evaluator, rules *PageRules) *PageOutcome {
	outcome := &PageOutcome{Passed: true, Checks: []PageCheck{}, FailedChecks: []string{}}
	if rules == nil {
		return outcome
	}

	record := func(check PageCheck) {
		outcome.Checks = append(outcome.Checks, check)
		if !check.Passed {
			outcome.Passed = false
			outcome.FailedChecks = append(outcome.FailedChecks, check.Name)
		}
	}

	if len(rules.URLContains) > 0 || len(rules.URLNotContains) > 0 {
		url, err := ev.URL(ctx)
		for _, want := range rules.URLContains {
			record(substringCheck(checkURLContains, url, want, true, err))
		}
		for _, reject := range rules.URLNotContains {
			record(substringCheck(checkURLNotContains, url, reject, false, err))
		}
	}

	if len(rules.TitleContains) > 0 || len(rules.TitleNotContains) > 0 {
		title, err := ev.Title(ctx)
		for _, want := range rules.TitleContains {
			record(substringCheck(checkTitleContains, title, want, true, err))
		}
		for _, reject := range rules.TitleNotContains {
			record(substringCheck(checkTitleNotContains, title, reject, false, err))
		}
	}

	for _, selector := range rules.RequiredElements {
		n, err := ev.Count(ctx, selector)
		check := PageCheck{Name: checkRequiredElements, Target: selector, Passed: err == nil && n >= 1}
		if err != nil {
			check.Detail = err.Error()
		} else if n < 1 {
			check.Detail = "no elements matched"
		}
		record(check)
	}

	for _, selector := range rules.ForbiddenElements {
		n, err := ev.Count(ctx, selector)
		check := PageCheck{Name: checkForbiddenElements, Target: selector, Passed: err == nil && n == 0}
		if err != nil {
			check.Detail = err.Error()
		} else if n > 0 {
			check.Detail = fmt.Sprintf("%d forbidden elements present", n)
		}
		record(check)
	}

	if rules.MinContentLength > 0 {
		text, err := ev.Text(ctx)
		length := len(strings.TrimSpace(text))
		check := PageCheck{
			Name:   checkMinContentLength,
			Target: fmt.Sprintf("%d", rules.MinContentLength),
			Passed: err == nil && length >= rules.MinContentLength,
		}
		if err != nil {
			check.Detail = err.Error()
		} else if length < rules.MinContentLength {
			check.Detail = fmt.Sprintf("visible text length %d below floor", length)
		}
		record(check)
	}

	return outcome
}

func substringCheck(name, haystack, needle string, wantPresent bool, err error) PageCheck {
	check := PageCheck{Name: name, Target: needle}
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	present := strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	check.Passed = present == wantPresent
	if !check.Passed {
		if wantPresent {
			check.Detail = fmt.Sprintf("%q not found in %q", needle, haystack)
		} else {
			check.Detail = fmt.Sprintf("%q unexpectedly present", needle)
		}
	}
	return check
}

// wrongPage reports whether the failed checks indicate a url or title
// mismatch, the signature of landing on an entirely different page.
func (o *PageOutcome) wrongPage() bool {
	for _, name := range o.FailedChecks {
		switch name {
		case checkURLContains, checkURLNotContains, checkTitleContains, checkTitleNotContains:
			return true
		}
	}
	return false
}
