package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// checkValue validates an extracted value against a rule. Unlike page
// validation this short-circuits: checks run in a fixed order and the first
// failure is returned. A nil rule, or a not-required rule with a null
// value, always passes.
//
// Order: required, type (numeric strings coerce for "number"), then
// type-specific checks: string length bounds, contains (case-sensitive),
// notContains (case-insensitive), pattern, numeric range.
func checkValue(v value.Value, rule *Rule, pattern *regexp.Regexp) (bool, string) {
	if rule == nil {
		return true, ""
	}

	missing := v.IsNull() || (v.Kind() == value.KindString && v.Text() == "")
	if missing {
		if rule.Required {
			return false, "required value is missing"
		}
		return true, ""
	}

	switch rule.Type {
	case "string":
		if _, ok := v.AsString(); !ok {
			return false, fmt.Sprintf("expected string, got %s", v.Kind())
		}
	case "number":
		if _, ok := v.Numeric(); !ok {
			return false, fmt.Sprintf("expected number, got %s", v.Kind())
		}
	case "boolean":
		if _, ok := v.AsBool(); !ok {
			return false, fmt.Sprintf("expected boolean, got %s", v.Kind())
		}
	case "array":
		if _, ok := v.AsArray(); !ok {
			return false, fmt.Sprintf("expected array, got %s", v.Kind())
		}
	}

	text := v.Text()

	if rule.MinLength > 0 && v.Len() < rule.MinLength {
		return false, fmt.Sprintf("length %d below minLength %d", v.Len(), rule.MinLength)
	}
	if rule.MaxLength > 0 && v.Len() > rule.MaxLength {
		return false, fmt.Sprintf("length %d above maxLength %d", v.Len(), rule.MaxLength)
	}

	for _, want := range rule.Contains {
		if !strings.Contains(text, want) {
			return false, fmt.Sprintf("value does not contain %q", want)
		}
	}
	lower := strings.ToLower(text)
	for _, reject := range rule.NotContains {
		if strings.Contains(lower, strings.ToLower(reject)) {
			return false, fmt.Sprintf("value contains forbidden %q", reject)
		}
	}

	if pattern != nil && !pattern.MatchString(text) {
		return false, fmt.Sprintf("value does not match pattern %q", pattern.String())
	}

	if len(rule.Range) == 2 {
		n, ok := v.Numeric()
		if !ok {
			return false, fmt.Sprintf("range check needs a number, got %s", v.Kind())
		}
		if n < rule.Range[0] || n > rule.Range[1] {
			return false, fmt.Sprintf("value %v outside range [%v, %v]", n, rule.Range[0], rule.Range[1])
		}
	}

	return true, ""
}
