package reports

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

func TestFileStoreSaveReport(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	report := &domain.SessionReport{
		ID:             "r-1",
		SessionID:      "s-1",
		StartedAt:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		EndedAt:        time.Date(2026, 8, 1, 10, 12, 0, 0, time.UTC),
		Turns:          6,
		GatheringTurns: 4,
		Outcome:        domain.OutcomeDiagnosed,
		FinalDiagnosis: "vata imbalance",
		Confidence:     0.72,
	}
	if err := store.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "session_s-1.json"))
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	var got domain.SessionReport
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode report file: %v", err)
	}
	if got.SessionID != "s-1" || got.Outcome != domain.OutcomeDiagnosed {
		t.Fatalf("unexpected report %+v", got)
	}
	if got.Confidence != 0.72 {
		t.Fatalf("confidence = %v, want 0.72", got.Confidence)
	}
}

func TestFileStoreOverwritesSameSession(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	first := &domain.SessionReport{ID: "r-1", SessionID: "s-1", Outcome: domain.OutcomeUncertain}
	second := &domain.SessionReport{ID: "r-2", SessionID: "s-1", Outcome: domain.OutcomeDiagnosed}
	if err := store.SaveReport(context.Background(), first); err != nil {
		t.Fatalf("first SaveReport: %v", err)
	}
	if err := store.SaveReport(context.Background(), second); err != nil {
		t.Fatalf("second SaveReport: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "session_s-1.json"))
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	var got domain.SessionReport
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode report file: %v", err)
	}
	if got.ID != "r-2" {
		t.Fatalf("report ID = %q, want r-2 (overwrite)", got.ID)
	}
}
