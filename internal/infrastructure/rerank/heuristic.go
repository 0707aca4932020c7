package rerank

import (
	"context"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/lexical"
)

const (
	weightFused   = 0.60
	weightOverlap = 0.30
	weightOrigin  = 0.10
)

// Heuristic rescoring without a model: normalized fused score blended with
// query token overlap and an origin hit when the query names the source or
// chapter. Good enough to keep retrieval ordered while the cross-encoder
// service is down.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var _ ports.Reranker = (*Heuristic)(nil)

func (h *Heuristic) Rerank(_ context.Context, query string, candidates []domain.RetrievalCandidate, topN int) ([]domain.RetrievalCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	out := append([]domain.RetrievalCandidate(nil), candidates...)
	queryTokens := tokenSet(query)

	minFused := out[0].FusedScore
	maxFused := out[0].FusedScore
	for _, candidate := range out[1:] {
		if candidate.FusedScore < minFused {
			minFused = candidate.FusedScore
		}
		if candidate.FusedScore > maxFused {
			maxFused = candidate.FusedScore
		}
	}

	scoreRange := maxFused - minFused
	normalize := func(v float64) float64 {
		if scoreRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minFused) / scoreRange
	}

	for i := range out {
		overlap := tokenOverlap(queryTokens, tokenSet(out[i].Chunk.Text))
		origin := originTokenHit(queryTokens, out[i].Chunk)
		out[i].RerankScore = weightFused*normalize(out[i].FusedScore) + weightOverlap*overlap + weightOrigin*origin
	}

	sortByRerankScore(out)
	return keepTop(out, topN), nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func originTokenHit(query map[string]struct{}, chunk domain.Chunk) float64 {
	if len(query) == 0 {
		return 0
	}
	origin := strings.ToLower(chunk.Source + " " + chunk.Chapter)
	for token := range query {
		if token == "" {
			continue
		}
		if strings.Contains(origin, token) {
			return 1
		}
	}
	return 0
}

func tokenSet(s string) map[string]struct{} {
	tokens := lexical.Tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}
