// Package watcher feeds PDFs dropped into a local directory through the
// same ingestion path as API uploads.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

const defaultDebounce = 500 * time.Millisecond

type Watcher struct {
	dir      string
	ingestor ports.DocumentIngestor
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(dir string, ingestor ports.DocumentIngestor, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		ingestor: ingestor,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches the drop directory until ctx is cancelled. Each settled
// CREATE/WRITE of a *.pdf registers a new document, exactly as an upload
// through the API would.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	slog.Info("watcher_started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher_error", "error", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for path. Copies and
// editors emit bursts of CREATE/WRITE; only the last event ingests.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		slog.Warn("watch_open_failed", "path", path, "error", err)
		return
	}
	defer file.Close()

	doc, err := w.ingestor.Upload(ctx, filepath.Base(path), file)
	if err != nil {
		slog.Error("watch_ingest_failed", "path", path, "error", err)
		return
	}
	slog.Info("watch_ingest", "path", path, "document_id", doc.ID)
}
