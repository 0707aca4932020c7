// Package embedding decorates the base embedder with batch splitting and a
// bounded worker pool for corpus-scale embedding jobs.
package embedding

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type BatchingEmbedder struct {
	base      ports.Embedder
	batchSize int
	pool      *ants.Pool
}

// NewBatchingEmbedder splits large Embed calls into batches executed on a
// bounded pool. Pool size defaults to NumCPU/2 with a minimum of 1.
func NewBatchingEmbedder(base ports.Embedder, batchSize, poolSize int) (*BatchingEmbedder, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	if poolSize < 1 {
		poolSize = runtime.NumCPU() / 2
		if poolSize < 1 {
			poolSize = 1
		}
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	return &BatchingEmbedder{
		base:      base,
		batchSize: batchSize,
		pool:      pool,
	}, nil
}

var _ ports.Embedder = (*BatchingEmbedder)(nil)

// Embed preserves input order: every batch writes into its own slot range of
// the output, whatever order the pool finishes in.
func (e *BatchingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= e.batchSize {
		return e.base.Embed(ctx, texts)
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if batchCtx.Err() != nil {
				return
			}
			vectors, err := e.base.Embed(batchCtx, texts[start:end])
			if err != nil {
				fail(fmt.Errorf("embed batch [%d:%d]: %w", start, end, err))
				return
			}
			if len(vectors) != end-start {
				fail(fmt.Errorf("embed batch [%d:%d]: got %d vectors", start, end, len(vectors)))
				return
			}
			copy(out[start:end], vectors)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embed batch [%d:%d]: %w", start, end, submitErr))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *BatchingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.base.EmbedQuery(ctx, text)
}

// Release frees the worker pool. The embedder must not be used afterwards.
func (e *BatchingEmbedder) Release() {
	e.pool.Release()
}
