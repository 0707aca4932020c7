package usecase

import (
	"context"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

// QueryRewriter expands a patient complaint into a corpus-friendly retrieval
// query. Rewriting is best effort: any failure falls back to the raw text.
type QueryRewriter struct {
	generator ports.TextGenerator
}

func NewQueryRewriter(generator ports.TextGenerator) *QueryRewriter {
	return &QueryRewriter{generator: generator}
}

func (q *QueryRewriter) Rewrite(ctx context.Context, text string) string {
	raw := strings.TrimSpace(text)
	if raw == "" || q == nil || q.generator == nil {
		return raw
	}

	rewritten, err := q.generator.Generate(ctx, buildRewritePrompt(raw))
	if err != nil {
		return raw
	}

	rewritten = firstLine(rewritten)
	if rewritten == "" {
		return raw
	}
	return rewritten
}

func buildRewritePrompt(text string) string {
	var b strings.Builder
	b.WriteString("Rewrite the patient description below as a short search query ")
	b.WriteString("for an Ayurvedic clinical reference. Use clinical vocabulary, ")
	b.WriteString("keep every reported symptom, add no new symptoms.\n\n")
	b.WriteString("Patient description: ")
	b.WriteString(text)
	b.WriteString("\n\nAnswer with the query only, on a single line.")
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(s, `"`))
}
