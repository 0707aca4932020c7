package rerank

import (
	"context"
	"log/slog"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

// WithFallback tries the primary reranker and degrades to the fallback on
// any error except context cancellation, which it propagates.
type WithFallback struct {
	primary  ports.Reranker
	fallback ports.Reranker
}

func NewWithFallback(primary, fallback ports.Reranker) *WithFallback {
	return &WithFallback{primary: primary, fallback: fallback}
}

var _ ports.Reranker = (*WithFallback)(nil)

func (r *WithFallback) Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, topN int) ([]domain.RetrievalCandidate, error) {
	out, err := r.primary.Rerank(ctx, query, candidates, topN)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("rerank_fallback", "error", err)
	return r.fallback.Rerank(ctx, query, candidates, topN)
}
