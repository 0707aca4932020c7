package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type SafetyConfig struct {
	Threshold float64
}

func (c SafetyConfig) withDefaults() SafetyConfig {
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = 0.65
	}
	return c
}

// SafetyEngine matches user text against the risk catalogue by embedding
// similarity. The catalogue is embedded once at construction and immutable
// afterwards, so Evaluate is safe for concurrent use.
//
// Evaluate fails closed: when the user text cannot be embedded the
// assessment reports a detected risk with Degraded set, and the error is
// returned alongside for logging.
type SafetyEngine struct {
	embedder  ports.Embedder
	threshold float64
	concepts  []domain.RiskConcept
	vectors   [][]float32
}

func NewSafetyEngine(ctx context.Context, embedder ports.Embedder, catalogue []domain.RiskConcept, cfg SafetyConfig) (*SafetyEngine, error) {
	cfg = cfg.withDefaults()
	if len(catalogue) == 0 {
		return nil, fmt.Errorf("safety engine: empty risk catalogue")
	}

	texts := make([]string, len(catalogue))
	for i, concept := range catalogue {
		texts[i] = concept.Description
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed risk catalogue: %w", err)
	}
	if len(vectors) != len(catalogue) {
		return nil, fmt.Errorf("embed risk catalogue: got %d vectors for %d concepts", len(vectors), len(catalogue))
	}
	for i := range vectors {
		vectors[i] = normalizeVector(vectors[i])
	}

	return &SafetyEngine{
		embedder:  embedder,
		threshold: cfg.Threshold,
		concepts:  append([]domain.RiskConcept(nil), catalogue...),
		vectors:   vectors,
	}, nil
}

func (e *SafetyEngine) Evaluate(ctx context.Context, text string) (domain.SafetyAssessment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SafetyAssessment{}, nil
	}

	vector, err := e.embedder.Embed(ctx, []string{text})
	if err != nil || len(vector) != 1 {
		if err == nil {
			err = fmt.Errorf("expected 1 vector, got %d", len(vector))
		}
		return domain.SafetyAssessment{RiskDetected: true, Degraded: true}, fmt.Errorf("embed user text: %w", err)
	}

	query := normalizeVector(vector[0])
	matches := make([]domain.RiskMatch, 0, 4)
	for i, concept := range e.concepts {
		score := dotProduct(query, e.vectors[i])
		if score >= e.threshold {
			matches = append(matches, domain.RiskMatch{Concept: concept.Name, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	return domain.SafetyAssessment{
		RiskDetected: len(matches) > 0,
		Matches:      matches,
	}, nil
}

func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
