package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// Request is the caller-facing extraction request. It is a plain value
// object that round-trips through JSON; Compile turns it into an executable
// form and is the single place where malformed configuration fails.
type Request struct {
	// Chain is the ordered list of selectors tried in sequence. Entries may
	// be CSS selectors or XPath expressions prefixed with "xpath:".
	Chain []string `json:"chain"`

	// Field selects what to extract from a match: "text" (default), "html"
	// or "attr:<name>".
	Field string `json:"field,omitempty"`

	// FallbackScript is evaluated against the live page when the whole
	// chain misses. Ignored by evaluators that cannot run scripts.
	FallbackScript string `json:"fallbackScript,omitempty"`

	// FallbackPattern is a regex run over the page text when the chain
	// misses. The first capture group, if any, becomes the candidate value.
	FallbackPattern string `json:"fallbackPattern,omitempty"`

	// Transform is a JavaScript expression applied to the raw matched text,
	// with the text bound as `raw`.
	Transform string `json:"transform,omitempty"`

	FallbackRanking *RankingConfig `json:"fallbackRanking,omitempty"`
	PageValidation  *PageRules     `json:"pageValidation,omitempty"`
	Validation      *Rule          `json:"validation,omitempty"`
}

// RankingConfig tunes candidate scoring. Pointer fields distinguish "unset,
// use default" from an explicit zero.
type RankingConfig struct {
	// PreferRange is [min, max]; numeric candidates inside it gain +0.2.
	PreferRange []float64 `json:"preferRange,omitempty"`

	// PenalizeOutsideRange is subtracted from numeric candidates outside
	// PreferRange. Default 0.3.
	PenalizeOutsideRange *float64 `json:"penalizeOutsideRange,omitempty"`

	// AvoidContextPatterns penalize a candidate once (not cumulatively)
	// when its surrounding context matches any entry. Default penalty 0.2.
	AvoidContextPatterns []string `json:"avoidContextPatterns,omitempty"`
	AvoidContextPenalty  *float64 `json:"avoidContextPenalty,omitempty"`

	// PreferContextPatterns grant a one-time bonus on context match.
	// Default bonus 0.15.
	PreferContextPatterns []string `json:"preferContextPatterns,omitempty"`
	PreferContextBonus    *float64 `json:"preferContextBonus,omitempty"`
}

// PageRules are the declarative page-context checks run before trusting
// any extracted data. All substring checks are case-insensitive.
type PageRules struct {
	URLContains      []string `json:"urlContains,omitempty"`
	URLNotContains   []string `json:"urlNotContains,omitempty"`
	TitleContains    []string `json:"titleContains,omitempty"`
	TitleNotContains []string `json:"titleNotContains,omitempty"`

	// RequiredElements must each match at least one element.
	RequiredElements []string `json:"requiredElements,omitempty"`

	// ForbiddenElements must match zero elements. Primarily detects
	// bot-check and CAPTCHA interstitials.
	ForbiddenElements []string `json:"forbiddenElements,omitempty"`

	// MinContentLength is a visible-text length floor that catches blank
	// and error pages.
	MinContentLength int `json:"minContentLength,omitempty"`
}

// Rule validates the extracted value.
type Rule struct {
	// Type is one of "string", "number", "boolean", "array". Empty skips
	// the type check. Numeric strings coerce for "number".
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`

	MinLength int `json:"minLength,omitempty"`
	MaxLength int `json:"maxLength,omitempty"`

	// Range is [min, max] for numeric values.
	Range []float64 `json:"range,omitempty"`

	// Pattern is a regex the value text must match (case-sensitive).
	Pattern string `json:"pattern,omitempty"`

	// Contains are required substrings (case-sensitive); NotContains are
	// forbidden substrings (case-insensitive).
	Contains    []string `json:"contains,omitempty"`
	NotContains []string `json:"notContains,omitempty"`
}

const (
	defaultOutsidePenalty = 0.3
	defaultAvoidPenalty   = 0.2
	defaultPreferBonus    = 0.15
)

// ranking holds RankingConfig with defaults resolved and patterns compiled.
type ranking struct {
	hasRange       bool
	rangeMin       float64
	rangeMax       float64
	outsidePenalty float64
	avoidPenalty   float64
	preferBonus    float64
	avoid          []*regexp.Regexp
	prefer         []*regexp.Regexp
}

// Compiled is an executable extraction request. All regexes and the
// transform program are compiled exactly once, before any page interaction.
type Compiled struct {
	Request

	field       string
	pattern     *regexp.Regexp
	rulePattern *regexp.Regexp
	rank        ranking
	transform   *goja.Program
}

var validRuleTypes = map[string]bool{
	"": true, "string": true, "number": true, "boolean": true, "array": true,
}

// Compile validates the request and produces its executable form. This is
// the sole fatal surface of the pipeline: invalid regexes, malformed
// transform expressions and inconsistent rule shapes fail here, before any
// page interaction.
func (r Request) Compile() (*Compiled, error) {
	c := &Compiled{Request: r, field: r.Field}
	if c.field == "" {
		c.field = FieldText
	}

	for i, sel := range r.Chain {
		if strings.TrimSpace(sel) == "" {
			return nil, fmt.Errorf("chain[%d]: empty selector", i)
		}
	}

	if r.FallbackPattern != "" {
		re, err := regexp.Compile(r.FallbackPattern)
		if err != nil {
			return nil, fmt.Errorf("fallbackPattern: %w", err)
		}
		c.pattern = re
	}

	rank, err := compileRanking(r.FallbackRanking)
	if err != nil {
		return nil, err
	}
	c.rank = rank

	if r.Validation != nil {
		rule := r.Validation
		if !validRuleTypes[rule.Type] {
			return nil, fmt.Errorf("validation: unknown type %q", rule.Type)
		}
		if len(rule.Range) != 0 && len(rule.Range) != 2 {
			return nil, fmt.Errorf("validation: range must be [min, max]")
		}
		if len(rule.Range) == 2 && rule.Range[0] > rule.Range[1] {
			return nil, fmt.Errorf("validation: range min exceeds max")
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("validation.pattern: %w", err)
			}
			c.rulePattern = re
		}
	}

	if r.Transform != "" {
		prog, err := goja.Compile("transform", r.Transform, true)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		c.transform = prog
	}

	return c, nil
}

func compileRanking(rc *RankingConfig) (ranking, error) {
	rank := ranking{
		outsidePenalty: defaultOutsidePenalty,
		avoidPenalty:   defaultAvoidPenalty,
		preferBonus:    defaultPreferBonus,
	}
	if rc == nil {
		return rank, nil
	}

	switch len(rc.PreferRange) {
	case 0:
	case 2:
		if rc.PreferRange[0] > rc.PreferRange[1] {
			return rank, fmt.Errorf("fallbackRanking: preferRange min exceeds max")
		}
		rank.hasRange = true
		rank.rangeMin = rc.PreferRange[0]
		rank.rangeMax = rc.PreferRange[1]
	default:
		return rank, fmt.Errorf("fallbackRanking: preferRange must be [min, max]")
	}

	if rc.PenalizeOutsideRange != nil {
		rank.outsidePenalty = *rc.PenalizeOutsideRange
	}
	if rc.AvoidContextPenalty != nil {
		rank.avoidPenalty = *rc.AvoidContextPenalty
	}
	if rc.PreferContextBonus != nil {
		rank.preferBonus = *rc.PreferContextBonus
	}

	for _, p := range rc.AvoidContextPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return rank, fmt.Errorf("fallbackRanking.avoidContextPatterns: %w", err)
		}
		rank.avoid = append(rank.avoid, re)
	}
	for _, p := range rc.PreferContextPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return rank, fmt.Errorf("fallbackRanking.preferContextPatterns: %w", err)
		}
		rank.prefer = append(rank.prefer, re)
	}

	return rank, nil
}
