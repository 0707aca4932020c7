package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type RetrievalConfig struct {
	DenseCandidates   int
	LexicalCandidates int
	Fusion            FusionConfig
	RerankKeep        int
	TopK              int

	// OnRetrieve, when set, observes every completed retrieval: fused pool
	// size, kept size after rerank, and wall time.
	OnRetrieve func(fused, kept int, elapsed time.Duration)
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.DenseCandidates <= 0 {
		c.DenseCandidates = 80
	}
	if c.LexicalCandidates <= 0 {
		c.LexicalCandidates = 80
	}
	if c.Fusion.Keep <= 0 {
		c.Fusion.Keep = 20
	}
	if c.Fusion.DenseWeight == 0 {
		c.Fusion.DenseWeight = 1.0
	}
	if c.Fusion.LexicalWeight == 0 {
		c.Fusion.LexicalWeight = 1.0
	}
	if c.RerankKeep <= 0 {
		c.RerankKeep = 8
	}
	if c.TopK <= 0 {
		c.TopK = 12
	}
	return c
}

const (
	degradedDenseUnavailable  = "dense_unavailable"
	degradedRerankUnavailable = "rerank_unavailable"
)

type retrievalOutcome struct {
	candidates []domain.RetrievalCandidate
	degraded   []string
	fused      int
}

// HybridRetriever fuses dense and lexical retrieval with weighted RRF and
// reranks the fused pool.
type HybridRetriever struct {
	embedder ports.Embedder
	vectors  ports.VectorIndex
	lexical  ports.LexicalSearcher
	reranker ports.Reranker
	cfg      RetrievalConfig
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	lexical ports.LexicalSearcher,
	reranker ports.Reranker,
	cfg RetrievalConfig,
) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		reranker: reranker,
		cfg:      cfg.withDefaults(),
	}
}

// Search implements ports.RetrievalService.
func (r *HybridRetriever) Search(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieval search", fmt.Errorf("empty query"))
	}
	if k <= 0 {
		k = r.cfg.TopK
	}

	outcome, err := r.retrieve(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	return trimCandidates(outcome.candidates, k), nil
}

// RetrieveContext returns the reranked pool plus any degradation reasons,
// for callers that need to surface partial availability.
func (r *HybridRetriever) RetrieveContext(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.RetrievalCandidate, []string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil, nil
	}
	outcome, err := r.retrieve(ctx, query, filter)
	if err != nil {
		return nil, nil, err
	}
	return outcome.candidates, outcome.degraded, nil
}

func (r *HybridRetriever) retrieve(ctx context.Context, query string, filter domain.SearchFilter) (retrievalOutcome, error) {
	start := time.Now()
	outcome, err := r.doRetrieve(ctx, query, filter)
	if err == nil && r.cfg.OnRetrieve != nil {
		r.cfg.OnRetrieve(outcome.fused, len(outcome.candidates), time.Since(start))
	}
	return outcome, err
}

// doRetrieve runs both retrievers concurrently, fuses and reranks. One
// retriever failing degrades the result instead of failing the call; only
// the dense side can fail at all, the lexical index is in-memory.
func (r *HybridRetriever) doRetrieve(ctx context.Context, query string, filter domain.SearchFilter) (retrievalOutcome, error) {
	var (
		wg       sync.WaitGroup
		dense    []domain.ScoredChunk
		denseErr error
		lexical  []domain.ScoredChunk
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vector, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			denseErr = fmt.Errorf("embed query: %w", err)
			return
		}
		dense, err = r.vectors.Search(ctx, vector, r.cfg.DenseCandidates, filter)
		if err != nil {
			denseErr = fmt.Errorf("dense search: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		lexical = r.lexical.Search(query, r.cfg.LexicalCandidates, filter)
	}()
	wg.Wait()

	var outcome retrievalOutcome
	if denseErr != nil {
		if len(lexical) == 0 {
			return outcome, denseErr
		}
		outcome.degraded = append(outcome.degraded, degradedDenseUnavailable)
		dense = nil
	}

	fused := fuseWeightedRRF(dense, lexical, r.cfg.Fusion)
	outcome.fused = len(fused)
	if len(fused) == 0 {
		return outcome, nil
	}

	reranked, err := r.reranker.Rerank(ctx, query, fused, r.cfg.RerankKeep)
	if err != nil {
		outcome.degraded = append(outcome.degraded, degradedRerankUnavailable)
		outcome.candidates = trimCandidates(fused, r.cfg.RerankKeep)
		return outcome, nil
	}

	outcome.candidates = trimCandidates(reranked, r.cfg.RerankKeep)
	return outcome, nil
}
