package usecase

// fallbackQuestion guarantees forward progress when regeneration keeps
// producing duplicates.
const fallbackQuestion = "Is there anything else about your symptoms, such as when they started, how severe they feel, or anything that makes them better or worse?"

var assentTerms = []string{"yes", "yeah", "ok", "okay", "sure", "please", "remedies"}

// isDuplicateQuestion reports whether the candidate restates any previously
// asked question: token-overlap ratio at or above the threshold after
// normalization counts as a duplicate.
func isDuplicateQuestion(candidate string, asked []string, threshold float64) bool {
	if threshold <= 0 {
		threshold = 0.75
	}
	candidateSet := toTokenSet(candidate)
	if len(candidateSet) == 0 {
		return false
	}
	for _, question := range asked {
		if overlapRatio(candidateSet, toTokenSet(question)) >= threshold {
			return true
		}
	}
	return false
}

// parseAssent recognizes consent replies by word match against a small
// fixed lexicon.
func parseAssent(reply string) bool {
	normalized := normalizeUtterance(reply)
	for _, term := range assentTerms {
		if containsPhrase(normalized, term) {
			return true
		}
	}
	return false
}
