// Package qdrant implements the dense vector index over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/resilience"
)

// filterOverFetch caps how far a source-filtered search widens the request
// before truncating back down to the caller's limit.
const filterOverFetch = 10

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

var _ ports.VectorIndex = (*Client)(nil)

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

func NewWithOptions(baseURL, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:      pointID(chunk.Source, chunk.Index),
			Vector:  vectors[i],
			Payload: chunkPayload(doc, chunk),
		})
	}

	reqBody := map[string]any{"points": points}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create upsert request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant upsert request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError("upsert", resp)
		}
		return nil
	}
	return c.execute(ctx, "qdrant.upsert", call)
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredChunk, error) {
	requestLimit := limit
	if filter.Source != "" {
		requestLimit = limit * filterOverFetch
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        requestLimit,
		"with_payload": true,
	}
	if filter.Source != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": "source",
					"match": map[string]any{
						"value": filter.Source,
					},
				},
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError("search", resp)
		}

		searchResp.Result = nil
		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
		return nil
	}
	if err := c.execute(ctx, "qdrant.search", call); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		chunk := chunkFromPayload(r.Payload)
		if filter.Source != "" && chunk.Source != filter.Source {
			continue
		}
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: r.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create collection request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant ensure collection request: %w", err)
		}
		defer resp.Body.Close()

		// 200/201 for create, 409 if already exists (depends on version/config).
		if resp.StatusCode == http.StatusConflict {
			return nil
		}
		if resp.StatusCode >= 300 {
			return statusError("ensure collection", resp)
		}
		return nil
	}
	if err := c.execute(ctx, "qdrant.ensure_collection", call); err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

// pointID derives a stable UUID from the chunk identity so re-processing a
// document overwrites its points instead of duplicating them.
func pointID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", source, index))).String()
}

func chunkPayload(doc *domain.Document, chunk domain.Chunk) map[string]any {
	payload := map[string]any{
		"doc_id":      doc.ID,
		"filename":    doc.Filename,
		"chunk_index": chunk.Index,
		"text":        chunk.Text,
		"source":      chunk.Source,
	}
	optional := map[string]string{
		"chapter":          chunk.Chapter,
		"topic":            chunk.Topic,
		"dosha":            chunk.Dosha,
		"category":         chunk.Category,
		"disease_type":     chunk.DiseaseType,
		"srotas":           chunk.Srotas,
		"treatment_type":   chunk.TreatmentType,
		"level_of_care":    chunk.LevelOfCare,
		"formulation_type": chunk.FormulationType,
	}
	for key, value := range optional {
		if value != "" {
			payload[key] = value
		}
	}
	return payload
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	return domain.Chunk{
		Index:           getIntPayload(payload, "chunk_index"),
		Text:            getStringPayload(payload, "text"),
		Source:          getStringPayload(payload, "source"),
		Chapter:         getStringPayload(payload, "chapter"),
		Topic:           getStringPayload(payload, "topic"),
		Dosha:           getStringPayload(payload, "dosha"),
		Category:        getStringPayload(payload, "category"),
		DiseaseType:     getStringPayload(payload, "disease_type"),
		Srotas:          getStringPayload(payload, "srotas"),
		TreatmentType:   getStringPayload(payload, "treatment_type"),
		LevelOfCare:     getStringPayload(payload, "level_of_care"),
		FormulationType: getStringPayload(payload, "formulation_type"),
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
