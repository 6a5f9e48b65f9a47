package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceOrdering(t *testing.T) {
	primary, _ := scoreConfidence(MethodPrimary, 0, 0, true)
	fallback, _ := scoreConfidence(MethodFallback, 1, 0, true)
	ranked, _ := scoreConfidence(MethodRegexRanked, 0, 1.0, true)
	failed, _ := scoreConfidence(MethodFailed, 0, 0, true)

	assert.Greater(t, primary, fallback)
	assert.Greater(t, fallback, ranked)
	assert.Greater(t, ranked, failed)
	assert.Equal(t, 0.0, failed)
}

func TestConfidenceFallbackDecay(t *testing.T) {
	idx1, _ := scoreConfidence(MethodFallback, 1, 0, true)
	idx2, _ := scoreConfidence(MethodFallback, 2, 0, true)
	idx3, _ := scoreConfidence(MethodFallback, 3, 0, true)

	assert.InDelta(t, 0.85, idx1, 1e-9)
	assert.InDelta(t, 0.80, idx2, 1e-9)
	assert.InDelta(t, 0.75, idx3, 1e-9)

	// deep chain positions floor at 0.5
	deep, _ := scoreConfidence(MethodFallback, 20, 0, true)
	assert.InDelta(t, 0.5, deep, 1e-9)
}

func TestConfidenceRegexScaled(t *testing.T) {
	conf, _ := scoreConfidence(MethodRegexRanked, 0, 0.85, true)
	assert.InDelta(t, 0.51, conf, 1e-9)

	// a perfect candidate still cannot outrank a genuine selector match
	perfect, _ := scoreConfidence(MethodRegexRanked, 0, 1.0, true)
	floor, _ := scoreConfidence(MethodFallback, 100, 0, true)
	assert.Less(t, perfect, ConfidencePrimary)
	assert.LessOrEqual(t, perfect, floor+0.1)
}

func TestPageFailureForcesZero(t *testing.T) {
	for _, method := range []Method{MethodPrimary, MethodFallback, MethodRegexRanked, MethodFailed} {
		conf, level := scoreConfidence(method, 1, 1.0, false)
		assert.Equal(t, 0.0, conf, "method %s", method)
		assert.Equal(t, LevelUnusable, level)
	}
}

func TestLevelThresholds(t *testing.T) {
	cases := []struct {
		conf  float64
		level Level
	}{
		{0.95, LevelReliable},
		{0.85, LevelReliable},
		{0.84, LevelCaution},
		{0.60, LevelCaution},
		{0.59, LevelReview},
		{0.40, LevelReview},
		{0.39, LevelUnusable},
		{0.0, LevelUnusable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, levelFor(tc.conf), "confidence %v", tc.conf)
	}
}
