package extract

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankingFor(t *testing.T, rc *RankingConfig) ranking {
	t.Helper()
	rank, err := compileRanking(rc)
	require.NoError(t, err)
	return rank
}

func TestCandidateRankingPriceScenario(t *testing.T) {
	// separate the two prices by more than the context window so each
	// candidate sees only its own surroundings
	gap := strings.Repeat("lorem ipsum ", 12)
	text := "was $249.00 " + gap + " $199.00 add to cart"
	pattern := regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	rank := rankingFor(t, &RankingConfig{
		PreferRange:           []float64{100, 300},
		AvoidContextPatterns:  []string{"was"},
		PreferContextPatterns: []string{"add to cart"},
	})

	candidates := extractCandidates(text, pattern, rank)
	require.Len(t, candidates, 2)

	// $199.00: base 0.5 + range 0.2 + prefer 0.15
	winner := candidates[0]
	assert.Equal(t, "199.00", winner.Value)
	assert.InDelta(t, 0.85, winner.Score, 1e-9)
	assert.True(t, reasoningContains(winner, "inPreferredRange"))
	assert.True(t, reasoningContains(winner, "preferContext"))

	// $249.00: base 0.5 + range 0.2 - avoid 0.2
	loser := candidates[1]
	assert.Equal(t, "249.00", loser.Value)
	assert.InDelta(t, 0.5, loser.Score, 1e-9)
	assert.True(t, reasoningContains(loser, "avoidContext"))
}

func TestCandidateScoresClamped(t *testing.T) {
	text := "was $9.00 was $9.50"
	pattern := regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	big := 5.0
	rank := rankingFor(t, &RankingConfig{
		PreferRange:          []float64{100, 300},
		PenalizeOutsideRange: &big,
		AvoidContextPatterns: []string{"was"},
		AvoidContextPenalty:  &big,
	})

	for _, c := range extractCandidates(text, pattern, rank) {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
		assert.True(t, reasoningContains(c, "clamped"))
	}
}

func TestCandidateAvoidPenaltyAppliedOnce(t *testing.T) {
	text := "was, previously, originally $50.00"
	pattern := regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	rank := rankingFor(t, &RankingConfig{
		AvoidContextPatterns: []string{"was", "previously", "originally"},
	})

	candidates := extractCandidates(text, pattern, rank)
	require.Len(t, candidates, 1)
	// only the first matching avoid pattern fires: 0.5 - 0.2
	assert.InDelta(t, 0.3, candidates[0].Score, 1e-9)
}

func TestCandidateTieBrokenByPosition(t *testing.T) {
	text := "$10.00 then $10.00 again"
	pattern := regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	rank := rankingFor(t, nil)

	candidates := extractCandidates(text, pattern, rank)
	require.Len(t, candidates, 2)
	assert.Equal(t, candidates[0].Score, candidates[1].Score)
	assert.Less(t, candidates[0].Position, candidates[1].Position)
}

func TestCandidateContextWindow(t *testing.T) {
	text := "aaa $5.00 bbb"
	pattern := regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	candidates := extractCandidates(text, pattern, rankingFor(t, nil))
	require.Len(t, candidates, 1)
	assert.Equal(t, text, candidates[0].Context) // short text fits in the window
	assert.Equal(t, 4, candidates[0].Position)
}

func TestCandidateNoMatches(t *testing.T) {
	pattern := regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	assert.Nil(t, extractCandidates("no prices here", pattern, rankingFor(t, nil)))
}

func TestCandidateNumberParsing(t *testing.T) {
	n, ok := candidateNumber("$1,299.50")
	require.True(t, ok)
	assert.Equal(t, 1299.5, n)

	_, ok = candidateNumber("free")
	assert.False(t, ok)
}
