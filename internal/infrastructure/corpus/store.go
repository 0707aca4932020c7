// Package corpus persists the chunk corpus as one *_chunks.json snapshot per
// source document and loads them back into a single ordered slice.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

const snapshotSuffix = "_chunks.json"

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = "./data/chunks"
	}
	return &Store{dir: dir}
}

var _ ports.CorpusStore = (*Store)(nil)

// Load reads every snapshot in lexicographic filename order and assigns
// global chunk indices in (filename, position) order, so the corpus layout
// is identical on every start. An empty corpus is an error: retrieval
// without chunks cannot serve anything.
func (s *Store) Load(ctx context.Context) ([]domain.Chunk, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read chunk directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var corpus []domain.Chunk
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", name, err)
		}
		var chunks []domain.Chunk
		if err := json.Unmarshal(raw, &chunks); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
		}
		for _, chunk := range chunks {
			chunk.Index = len(corpus)
			corpus = append(corpus, chunk)
		}
	}

	if len(corpus) == 0 {
		return nil, fmt.Errorf("no chunk snapshots under %s", s.dir)
	}
	return corpus, nil
}

// SaveDocumentChunks overwrites the source's snapshot atomically, so a crash
// mid-write never leaves a truncated file for the next Load.
func (s *Store) SaveDocumentChunks(_ context.Context, source string, chunks []domain.Chunk) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create chunk directory: %w", err)
	}

	payload, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	name := snapshotName(source)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func snapshotName(source string) string {
	base := filepath.Base(strings.TrimSpace(source))
	base = strings.ReplaceAll(base, string(filepath.Separator), "_")
	if base == "" || base == "." {
		base = "document"
	}
	return base + snapshotSuffix
}
