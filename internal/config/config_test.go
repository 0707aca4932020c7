package config

import (
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_DENSE_CANDIDATES", "")
	t.Setenv("RETRIEVAL_LEXICAL_CANDIDATES", "")
	t.Setenv("RETRIEVAL_FUSION_RRF_K", "")
	t.Setenv("RETRIEVAL_FUSION_KEEP", "")
	t.Setenv("RETRIEVAL_RERANK_KEEP", "")
	t.Setenv("RETRIEVAL_TOP_K", "")

	cfg := Load()
	if cfg.DenseCandidates != 80 {
		t.Fatalf("expected default dense candidates 80, got %d", cfg.DenseCandidates)
	}
	if cfg.LexicalCandidates != 80 {
		t.Fatalf("expected default lexical candidates 80, got %d", cfg.LexicalCandidates)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default fusion rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.DenseWeight != 1.0 || cfg.LexicalWeight != 1.0 {
		t.Fatalf("expected default weights 1.0, got %v/%v", cfg.DenseWeight, cfg.LexicalWeight)
	}
	if cfg.FusionKeep != 20 {
		t.Fatalf("expected default fusion keep 20, got %d", cfg.FusionKeep)
	}
	if cfg.RerankKeep != 8 {
		t.Fatalf("expected default rerank keep 8, got %d", cfg.RerankKeep)
	}
	if cfg.RetrievalTopK != 12 {
		t.Fatalf("expected default top k 12, got %d", cfg.RetrievalTopK)
	}
}

func TestLoadDialogueDefaults(t *testing.T) {
	cfg := Load()
	if cfg.MinGatheringTurns != 4 {
		t.Fatalf("expected min gathering 4, got %d", cfg.MinGatheringTurns)
	}
	if cfg.ExtendedGatheringTurns != 9 {
		t.Fatalf("expected extended gathering 9, got %d", cfg.ExtendedGatheringTurns)
	}
	if cfg.ConfidenceThreshold != 0.6 {
		t.Fatalf("expected confidence threshold 0.6, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.SafetyThreshold != 0.65 {
		t.Fatalf("expected safety threshold 0.65, got %v", cfg.SafetyThreshold)
	}
	if cfg.DuplicateOverlap != 0.75 {
		t.Fatalf("expected duplicate overlap 0.75, got %v", cfg.DuplicateOverlap)
	}
	if cfg.MaxRemedies != 5 {
		t.Fatalf("expected max remedies 5, got %d", cfg.MaxRemedies)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_DENSE_WEIGHT", "0.8")
	t.Setenv("RETRIEVAL_RERANK_KEEP", "6")
	t.Setenv("WORKER_DOC_TIMEOUT", "90s")
	t.Setenv("WATCH_DIR", "/data/raw_pdfs")
	t.Setenv("HTTP_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.DenseWeight != 0.8 {
		t.Fatalf("expected dense weight 0.8, got %v", cfg.DenseWeight)
	}
	if cfg.RerankKeep != 6 {
		t.Fatalf("expected rerank keep 6, got %d", cfg.RerankKeep)
	}
	if cfg.WorkerDocTimeout != 90*time.Second {
		t.Fatalf("expected 90s doc timeout, got %v", cfg.WorkerDocTimeout)
	}
	if cfg.WatchDir != "/data/raw_pdfs" {
		t.Fatalf("expected watch dir override, got %q", cfg.WatchDir)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("RETRIEVAL_FUSION_RRF_K", "sixty")
	t.Setenv("GENERATION_TEMPERATURE", "warm")
	t.Setenv("WORKER_DOC_TIMEOUT", "soon")

	cfg := Load()
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected fallback rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.GenerationTemperature != 0.1 {
		t.Fatalf("expected fallback temperature 0.1, got %v", cfg.GenerationTemperature)
	}
	if cfg.WorkerDocTimeout != 5*time.Minute {
		t.Fatalf("expected fallback doc timeout 5m, got %v", cfg.WorkerDocTimeout)
	}
}
