package usecase

import (
	"sort"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

type FusionConfig struct {
	RRFK          int
	DenseWeight   float64
	LexicalWeight float64
	Keep          int
}

func (c FusionConfig) withDefaults() FusionConfig {
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.DenseWeight < 0 {
		c.DenseWeight = 0
	}
	if c.LexicalWeight < 0 {
		c.LexicalWeight = 0
	}
	return c
}

// fuseWeightedRRF merges the dense and lexical rankings with weighted
// reciprocal rank fusion. Ranks are 1-based positions in each input; the
// first occurrence of a chunk wins its rank, an absent rank contributes
// nothing. Output is sorted by descending fused score with ties broken by
// ascending chunk index, then trimmed to cfg.Keep.
func fuseWeightedRRF(dense, lexical []domain.ScoredChunk, cfg FusionConfig) []domain.RetrievalCandidate {
	cfg = cfg.withDefaults()

	acc := make(map[int]*domain.RetrievalCandidate, len(dense)+len(lexical))
	order := make([]int, 0, len(dense)+len(lexical))

	lookup := func(chunk domain.Chunk) *domain.RetrievalCandidate {
		if c, ok := acc[chunk.Index]; ok {
			return c
		}
		c := &domain.RetrievalCandidate{Chunk: chunk}
		acc[chunk.Index] = c
		order = append(order, chunk.Index)
		return c
	}

	for i, hit := range dense {
		c := lookup(hit.Chunk)
		if c.DenseRank != 0 {
			continue
		}
		c.DenseRank = i + 1
		c.DenseScore = hit.Score
	}
	for i, hit := range lexical {
		c := lookup(hit.Chunk)
		if c.LexicalRank != 0 {
			continue
		}
		c.LexicalRank = i + 1
		c.LexicalScore = hit.Score
	}

	out := make([]domain.RetrievalCandidate, 0, len(acc))
	for _, idx := range order {
		c := acc[idx]
		if c.DenseRank > 0 {
			c.FusedScore += cfg.DenseWeight / float64(cfg.RRFK+c.DenseRank)
		}
		if c.LexicalRank > 0 {
			c.FusedScore += cfg.LexicalWeight / float64(cfg.RRFK+c.LexicalRank)
		}
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].Chunk.Index < out[j].Chunk.Index
	})

	return trimCandidates(out, cfg.Keep)
}

func trimCandidates(candidates []domain.RetrievalCandidate, limit int) []domain.RetrievalCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
