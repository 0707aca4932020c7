// Package rerank rescoring adapters for the hybrid retrieval pipeline: an
// HTTP cross-encoder client and a local heuristic used when the service is
// unreachable.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/resilience"
)

// Client scores candidates with a cross-encoder service speaking the
// text-embeddings-inference rerank protocol.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

var _ ports.Reranker = (*Client)(nil)

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, topN int) ([]domain.RetrievalCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, candidate := range candidates {
		texts[i] = candidate.Chunk.Text
	}

	var results []rerankResult
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/rerank", rerankRequest{Query: query, Texts: texts}, &results)
	}
	if err := c.execute(ctx, "rerank.score", call); err != nil {
		return nil, err
	}

	out := append([]domain.RetrievalCandidate(nil), candidates...)
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(out) {
			return nil, fmt.Errorf("rerank: result index %d outside candidate pool of %d", result.Index, len(out))
		}
		out[result.Index].RerankScore = result.Score
	}

	sortByRerankScore(out)
	return keepTop(out, topN), nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) postJSON(ctx context.Context, path string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call rerank service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return &HTTPStatusError{
			Operation:  path,
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       string(body),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}

func sortByRerankScore(candidates []domain.RetrievalCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RerankScore != candidates[j].RerankScore {
			return candidates[i].RerankScore > candidates[j].RerankScore
		}
		return candidates[i].Chunk.Index < candidates[j].Chunk.Index
	})
}

func keepTop(candidates []domain.RetrievalCandidate, topN int) []domain.RetrievalCandidate {
	if topN <= 0 || topN >= len(candidates) {
		return candidates
	}
	return candidates[:topN]
}
