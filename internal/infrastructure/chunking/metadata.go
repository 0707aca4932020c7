package chunking

import (
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

const topicMaxRunes = 120

// keywordRule maps a metadata label to the lowercase substrings implying it.
// Rules are ordered; the first hit wins.
type keywordRule struct {
	label    string
	keywords []string
}

var doshaRules = []keywordRule{
	{"Vata", []string{"vata"}},
	{"Pitta", []string{"pitta"}},
	{"Kapha", []string{"kapha"}},
}

var categoryRules = []keywordRule{
	{"Disease", []string{"roga", "disease", "disorder"}},
	{"Herb", []string{"herb", "plant", "dravya"}},
	{"Theory", []string{"principle", "theory", "concept"}},
}

var diseaseTypeRules = []keywordRule{
	{"Ano-rectal", []string{"ano-rectal", "fistula", "hemorrhoids", "fissure", "guda"}},
	{"Psychiatric", []string{"psychiatric", "insomnia", "epilepsy", "manas", "anidra", "apasmara"}},
}

var srotasRules = []keywordRule{
	{"Purishavaha", []string{"purishavaha", "stool", "feces", "rectum", "intestine"}},
	{"Manovaha", []string{"manovaha", "mind", "memory", "consciousness", "sleep"}},
}

var treatmentTypeRules = []keywordRule{
	{"Shodhana", []string{"shodhana", "vamana", "virechana", "basti", "nasya"}},
	{"Shamana", []string{"shamana", "linctus", "powder", "tablet"}},
}

var levelOfCareRules = []keywordRule{
	{"PHC", []string{"phc", "solo ayurveda physician"}},
	{"CHC", []string{"chc", "small hospitals"}},
}

var formulationTypeRules = []keywordRule{
	{"Churna", []string{"churna", "powder"}},
	{"Vati", []string{"vati", "tablet", "gutika"}},
	{"Ghrita", []string{"ghrita", "ghee"}},
}

func enrich(chunk domain.Chunk) domain.Chunk {
	lowered := strings.ToLower(chunk.Text)
	chunk.Topic = extractTopic(chunk.Text)
	chunk.Dosha = detectKeyword(lowered, doshaRules)
	chunk.Category = detectKeyword(lowered, categoryRules)
	chunk.DiseaseType = detectKeyword(lowered, diseaseTypeRules)
	chunk.Srotas = detectKeyword(lowered, srotasRules)
	chunk.TreatmentType = detectKeyword(lowered, treatmentTypeRules)
	chunk.LevelOfCare = detectKeyword(lowered, levelOfCareRules)
	chunk.FormulationType = detectKeyword(lowered, formulationTypeRules)
	return chunk
}

func detectKeyword(lowered string, rules []keywordRule) string {
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.label
			}
		}
	}
	return ""
}

// extractTopic takes the first sentence, capped at 120 runes.
func extractTopic(text string) string {
	topic := text
	if end := strings.IndexAny(text, ".!?"); end >= 0 {
		topic = text[:end]
	}
	topic = strings.TrimSpace(topic)
	runes := []rune(topic)
	if len(runes) > topicMaxRunes {
		topic = string(runes[:topicMaxRunes])
	}
	return topic
}
