package usecase

import (
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

// Phrases are matched against the normalized narrative (casefolded,
// punctuation stripped), so contractions appear as "can t walk".
var (
	severityPhrases = []string{
		"sudden severe",
		"worst ever",
		"worst headache",
		"crushing pain",
		"crushing chest",
		"thunderclap",
	}
	functionalLossPhrases = []string{
		"cannot walk", "can t walk", "unable to walk",
		"cannot speak", "can t speak", "unable to speak",
		"cannot see", "can t see", "lost vision", "loss of vision",
		"cannot breathe", "can t breathe", "unable to breathe",
		"cannot move", "can t move",
		"loss of consciousness", "passed out", "fainted",
	}
	systemicPhrases = []string{
		"blood in stool", "blood in vomit", "blood in urine",
		"vomiting blood", "coughing up blood", "black stools",
	}
	jointPainPhrases = []string{"joint pain", "joint swelling", "swollen joints"}
	onsetPhrases     = []string{"new", "recent", "recently", "started", "just began"}
)

// scanRedFlags is the coarse pre-diagnosis keyword scan. It runs once per
// session, before the first differential attempt, and is independent of the
// embedding-based safety engine.
func scanRedFlags(narrative string, profile domain.PatientProfile) (string, bool) {
	text := normalizeUtterance(narrative)
	if text == "" {
		return "", false
	}

	for _, phrase := range severityPhrases {
		if containsPhrase(text, phrase) {
			return "severity pattern: " + phrase, true
		}
	}
	for _, phrase := range functionalLossPhrases {
		if containsPhrase(text, phrase) {
			return "functional loss: " + phrase, true
		}
	}
	for _, phrase := range systemicPhrases {
		if containsPhrase(text, phrase) {
			return "systemic sign: " + phrase, true
		}
	}
	if containsPhrase(text, "fever") && containsPhrase(text, "stiff neck") {
		return "systemic sign: fever with stiff neck", true
	}

	if profile.Age > 50 {
		for _, joint := range jointPainPhrases {
			if !containsPhrase(text, joint) {
				continue
			}
			for _, onset := range onsetPhrases {
				if containsPhrase(text, onset) {
					return "age over 50 with new joint pain", true
				}
			}
		}
	}

	return "", false
}

func containsPhrase(normalized, phrase string) bool {
	return strings.Contains(" "+normalized+" ", " "+phrase+" ")
}
