package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Candidate is a provisional value from pattern-based fallback extraction,
// with the contextual score and the ordered trace of adjustments that
// produced it.
type Candidate struct {
	Value     string   `json:"value"`
	Context   string   `json:"context"`
	Score     float64  `json:"score"`
	Position  int      `json:"position"`
	Reasoning []string `json:"reasoning"`
}

const (
	candidateBaseScore = 0.5
	rangeBonus         = 0.2
	contextWindow      = 60
)

var numberRe = regexp.MustCompile(`-?[0-9][0-9,]*(?:\.[0-9]+)?`)

// extractCandidates collects every pattern match in the page text together
// with a fixed-size context window, scores each one, and returns the ranked
// list: score descending, ties broken by earliest document position. The
// caller takes the head as the result value and keeps the full list for
// inspection.
func extractCandidates(text string, pattern *regexp.Regexp, rank ranking) []Candidate {
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		// prefer the first capture group when the pattern declares one
		vs, ve := start, end
		if len(m) >= 4 && m[2] >= 0 {
			vs, ve = m[2], m[3]
		}

		ctxStart := start - contextWindow
		if ctxStart < 0 {
			ctxStart = 0
		}
		ctxEnd := end + contextWindow
		if ctxEnd > len(text) {
			ctxEnd = len(text)
		}

		cand := Candidate{
			Value:    text[vs:ve],
			Context:  text[ctxStart:ctxEnd],
			Position: start,
		}
		scoreCandidate(&cand, rank)
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Position < candidates[j].Position
	})
	return candidates
}

// scoreCandidate applies the ranking adjustments in a fixed order: range
// bonus or penalty, a one-time avoid-context penalty, then a one-time
// prefer-context bonus. The final score clamps to [0, 1] and every applied
// adjustment lands in the reasoning trace.
func scoreCandidate(c *Candidate, rank ranking) {
	score := candidateBaseScore
	c.Reasoning = append(c.Reasoning, fmt.Sprintf("base=%.2f", candidateBaseScore))

	if rank.hasRange {
		if n, ok := candidateNumber(c.Value); ok {
			if n >= rank.rangeMin && n <= rank.rangeMax {
				score += rangeBonus
				c.Reasoning = append(c.Reasoning, fmt.Sprintf("inPreferredRange(+%.2f)", rangeBonus))
			} else {
				score -= rank.outsidePenalty
				c.Reasoning = append(c.Reasoning, fmt.Sprintf("outsidePreferredRange(-%.2f)", rank.outsidePenalty))
			}
		}
	}

	// first matching avoid pattern only, not cumulative
	for _, re := range rank.avoid {
		if re.MatchString(c.Context) {
			score -= rank.avoidPenalty
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("avoidContext:%s(-%.2f)", re.String(), rank.avoidPenalty))
			break
		}
	}

	for _, re := range rank.prefer {
		if re.MatchString(c.Context) {
			score += rank.preferBonus
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("preferContext:%s(+%.2f)", re.String(), rank.preferBonus))
			break
		}
	}

	if score > 1 {
		score = 1
		c.Reasoning = append(c.Reasoning, "clampedHigh")
	}
	if score < 0 {
		score = 0
		c.Reasoning = append(c.Reasoning, "clampedLow")
	}
	c.Score = score
}

// candidateNumber parses the numeric content of a candidate value,
// tolerating currency symbols and thousands separators around it.
func candidateNumber(s string) (float64, bool) {
	match := numberRe.FindString(s)
	if match == "" {
		return 0, false
	}
	clean := make([]byte, 0, len(match))
	for i := 0; i < len(match); i++ {
		if match[i] != ',' {
			clean = append(clean, match[i])
		}
	}
	n, err := strconv.ParseFloat(string(clean), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
