package usecase

import (
	"strings"
	"unicode"
)

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// normalizeUtterance casefolds, strips punctuation and collapses whitespace.
func normalizeUtterance(s string) string {
	return strings.Join(splitAlphaNumLower(s), " ")
}

// overlapRatio is |A ∩ B| / min(|A|, |B|) over token sets.
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for token := range small {
		if _, ok := large[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(small))
}
