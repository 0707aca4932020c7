package usecase

import (
	"strconv"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

var (
	maleTerms      = []string{"male", "man", "boy", "gentleman"}
	femaleTerms    = []string{"female", "woman", "girl", "lady"}
	nonBinaryTerms = []string{"nonbinary", "non binary", "enby"}
)

// refineProfile updates the profile from one user turn. Extraction is
// heuristic: age is the first integer in (0,120) found in the turn, gender
// comes from a fixed vocabulary checked non-binary first, then female, so
// "non binary woman" and "female" resolve without substring accidents.
// Later turns overwrite earlier values; nothing is ever cleared.
func refineProfile(p *domain.PatientProfile, text string) {
	tokens := splitAlphaNumLower(text)

	for _, token := range tokens {
		n, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if n > 0 && n < 120 {
			p.Age = n
			break
		}
	}

	normalized := normalizeUtterance(text)
	for _, term := range nonBinaryTerms {
		if containsPhrase(normalized, term) {
			p.Gender = "non-binary"
			return
		}
	}

	set := toTokenSet(text)
	for _, term := range femaleTerms {
		if _, ok := set[term]; ok {
			p.Gender = "female"
			return
		}
	}
	for _, term := range maleTerms {
		if _, ok := set[term]; ok {
			p.Gender = "male"
			return
		}
	}
}
