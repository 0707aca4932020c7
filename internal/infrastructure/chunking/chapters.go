// Package chunking turns cleaned document text into enriched corpus chunks:
// chapter splitting on known headings, word-window chunking, and keyword
// metadata detection.
package chunking

import (
	"regexp"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

// chapterMarkers are the treatment-guideline chapter headings. Headings
// appear on their own line in the body, optionally preceded by a bare
// chapter number line.
var chapterMarkers = []string{
	"Kasa", "Tamaka Swasa", "Amlapitta", "Jalodara", "Amavata", "Jwara", "Pandu",
	"Ekakushtha", "Kamala", "Hypothyroidism", "Madhumeha", "Sthoulya", "Arsha", "Atisara",
	"Bhagandara", "Krimi", "Parikartika", "Anidra", "Apasmara", "Vishada", "Ashmari",
	"Mutraghata", "Mutrasthila", "Asrigdara", "Kashtaarthava", "Shwetapradara", "Avabahuka",
	"Katigraha", "Gridhrasi", "Pakshaghata", "Sandhigata Vata", "Vatarakta", "Abhishyanda",
	"Adhimantha", "Dantavestaka", "Mukhapaka", "Pratishyaya", "Shiroroga",
}

const fallbackChapterTitle = "General"

type MarkerParser struct {
	headings *regexp.Regexp
}

func NewMarkerParser() *MarkerParser {
	quoted := make([]string, len(chapterMarkers))
	for i, marker := range chapterMarkers {
		quoted[i] = regexp.QuoteMeta(marker)
	}
	return &MarkerParser{
		headings: regexp.MustCompile(`(?im)^\s*(?:\d+\s*\n)?(` + strings.Join(quoted, "|") + `)\s*$`),
	}
}

var _ ports.ChapterParser = (*MarkerParser)(nil)

// Parse splits text at heading lines; text before the first heading is
// dropped as front matter. Without any heading the whole text becomes a
// single General chapter.
func (p *MarkerParser) Parse(text string) []domain.ChapterText {
	matches := p.headings.FindAllStringSubmatchIndex(text, -1)

	chapters := make([]domain.ChapterText, 0, len(matches))
	for i, match := range matches {
		title := strings.TrimSpace(text[match[2]:match[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[match[1]:end])
		if content == "" {
			continue
		}
		chapters = append(chapters, domain.ChapterText{Title: title, Content: content})
	}

	if len(chapters) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			chapters = append(chapters, domain.ChapterText{Title: fallbackChapterTitle, Content: trimmed})
		}
	}
	return chapters
}
