package extract

// Method records how a value was obtained.
type Method string

const (
	MethodPrimary     Method = "primarySelector"
	MethodFallback    Method = "fallbackSelector"
	MethodRegexRanked Method = "regexRanked"
	MethodFailed      Method = "failed"
)

// Level is the discrete trust classification derived from confidence.
type Level string

const (
	LevelReliable Level = "reliable"
	LevelCaution  Level = "caution"
	LevelReview   Level = "review"
	LevelUnusable Level = "unusable"
)

const (
	// ConfidencePrimary is the trust assigned to an index-0 chain match.
	ConfidencePrimary = 0.95

	// fallback confidence starts here at chain index 1 and decays per
	// additional position, floored so a deep chain match still outranks
	// any pattern-derived value.
	confidenceFallbackBase = 0.85
	fallbackDecay          = 0.05
	fallbackFloor          = 0.5

	// RegexScale caps pattern-derived confidence at 0.6 x candidate score,
	// so a regex hit can never outrank a genuine selector match.
	RegexScale = 0.6

	// ReliableThreshold and friends bucket confidence into levels.
	ReliableThreshold = 0.85
	CautionThreshold  = 0.60
	UsableThreshold   = 0.40
)

// scoreConfidence derives (confidence, level) from the extraction method,
// the chain index that matched, the winning candidate score for
// pattern-derived results, and the page validation outcome. A failed page
// validation forces confidence to zero for every method: a value extracted
// from the wrong page is worthless even if a selector matched text on it.
func scoreConfidence(method Method, chainIndex int, candidateScore float64, pagePassed bool) (float64, Level) {
	if !pagePassed {
		return 0, LevelUnusable
	}

	var conf float64
	switch method {
	case MethodPrimary:
		conf = ConfidencePrimary
	case MethodFallback:
		conf = confidenceFallbackBase - fallbackDecay*float64(chainIndex-1)
		if conf < fallbackFloor {
			conf = fallbackFloor
		}
	case MethodRegexRanked:
		conf = RegexScale * candidateScore
	default:
		return 0, LevelUnusable
	}

	return conf, levelFor(conf)
}

func levelFor(conf float64) Level {
	switch {
	case conf >= ReliableThreshold:
		return LevelReliable
	case conf >= CautionThreshold:
		return LevelCaution
	case conf >= UsableThreshold:
		return LevelReview
	default:
		return LevelUnusable
	}
}
