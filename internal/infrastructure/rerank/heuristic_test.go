package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

func TestHeuristicPrefersQueryTokenOverlap(t *testing.T) {
	candidates := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{Index: 1, Text: "agni governs appetite and digestion", Source: "text a"}, FusedScore: 0.03},
		{Chunk: domain.Chunk{Index: 2, Text: "vata joint pain worsens in cold weather", Source: "text b"}, FusedScore: 0.03},
	}

	out, err := NewHeuristic().Rerank(context.Background(), "vata joint pain", candidates, 0)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if out[0].Chunk.Index != 2 {
		t.Fatalf("expected overlapping chunk first, got %+v", out[0])
	}
	if out[0].RerankScore <= out[1].RerankScore {
		t.Fatalf("scores not descending: %v vs %v", out[0].RerankScore, out[1].RerankScore)
	}
}

func TestHeuristicFollowsFusedScoreWithoutOverlap(t *testing.T) {
	candidates := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{Index: 1, Text: "one"}, FusedScore: 0.30},
		{Chunk: domain.Chunk{Index: 2, Text: "two"}, FusedScore: 0.90},
		{Chunk: domain.Chunk{Index: 3, Text: "three"}, FusedScore: 0.60},
	}

	out, err := NewHeuristic().Rerank(context.Background(), "unrelated query", candidates, 0)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	gotOrder := []int{out[0].Chunk.Index, out[1].Chunk.Index, out[2].Chunk.Index}
	wantOrder := []int{2, 3, 1}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestHeuristicOriginBoostBreaksEqualOverlap(t *testing.T) {
	candidates := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{Index: 1, Text: "weak digestion and ama", Source: "sushruta samhita"}, FusedScore: 0.5},
		{Chunk: domain.Chunk{Index: 2, Text: "weak digestion and ama", Source: "charaka samhita"}, FusedScore: 0.5},
	}

	out, err := NewHeuristic().Rerank(context.Background(), "charaka on digestion", candidates, 0)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if out[0].Chunk.Index != 2 {
		t.Fatalf("expected source-named chunk first, got %+v", out[0])
	}
}

func TestHeuristicTruncatesAndTieBreaksByChunkIndex(t *testing.T) {
	candidates := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{Index: 9, Text: "same"}, FusedScore: 0.4},
		{Chunk: domain.Chunk{Index: 3, Text: "same"}, FusedScore: 0.4},
		{Chunk: domain.Chunk{Index: 6, Text: "same"}, FusedScore: 0.4},
	}

	out, err := NewHeuristic().Rerank(context.Background(), "same", candidates, 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].Chunk.Index != 3 || out[1].Chunk.Index != 6 {
		t.Fatalf("tie break order wrong: %d, %d", out[0].Chunk.Index, out[1].Chunk.Index)
	}
}

func TestHeuristicDoesNotMutateInput(t *testing.T) {
	candidates := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{Index: 1, Text: "alpha"}, FusedScore: 0.1},
		{Chunk: domain.Chunk{Index: 2, Text: "beta"}, FusedScore: 0.9},
	}

	if _, err := NewHeuristic().Rerank(context.Background(), "beta", candidates, 0); err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if candidates[0].Chunk.Index != 1 || candidates[0].RerankScore != 0 {
		t.Fatalf("input slice mutated: %+v", candidates[0])
	}
}

type rerankerFake struct {
	out   []domain.RetrievalCandidate
	err   error
	calls int
}

func (f *rerankerFake) Rerank(_ context.Context, _ string, _ []domain.RetrievalCandidate, _ int) ([]domain.RetrievalCandidate, error) {
	f.calls++
	return f.out, f.err
}

func TestWithFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &rerankerFake{out: []domain.RetrievalCandidate{{RerankScore: 0.9}}}
	fallback := &rerankerFake{}

	out, err := NewWithFallback(primary, fallback).Rerank(context.Background(), "q", poolOfThree(), 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 1 || out[0].RerankScore != 0.9 {
		t.Fatalf("unexpected output: %v", out)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback must stay idle, called %d times", fallback.calls)
	}
}

func TestWithFallbackDegradesOnPrimaryError(t *testing.T) {
	primary := &rerankerFake{err: errors.New("connection refused")}
	fallback := &rerankerFake{out: []domain.RetrievalCandidate{{RerankScore: 0.5}}}

	out, err := NewWithFallback(primary, fallback).Rerank(context.Background(), "q", poolOfThree(), 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 1 || out[0].RerankScore != 0.5 {
		t.Fatalf("expected fallback output, got %v", out)
	}
}

func TestWithFallbackPropagatesCancellation(t *testing.T) {
	primary := &rerankerFake{err: context.Canceled}
	fallback := &rerankerFake{out: poolOfThree()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWithFallback(primary, fallback).Rerank(ctx, "q", poolOfThree(), 2)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback must not run after cancellation, called %d times", fallback.calls)
	}
}
