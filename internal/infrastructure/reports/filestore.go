// Package reports persists session evaluation reports as JSON files, for
// binaries that run without a database.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "./data/reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

var _ ports.SessionReportStore = (*FileStore)(nil)

// SaveReport writes one file per session, named by session ID so a repeated
// save overwrites rather than duplicates. The write goes through a temp file
// and rename, so a crash never leaves a truncated report.
func (s *FileStore) SaveReport(_ context.Context, report *domain.SessionReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session report: %w", err)
	}

	target := filepath.Join(s.dir, fmt.Sprintf("session_%s.json", report.SessionID))
	tmp, err := os.CreateTemp(s.dir, "report-*.tmp")
	if err != nil {
		return fmt.Errorf("create report temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session report: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("publish session report: %w", err)
	}
	return nil
}
