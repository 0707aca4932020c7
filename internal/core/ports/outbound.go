package ports

import (
	"context"
	"io"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

// Embedder builds vectors for corpus chunks and query text. EmbedQuery
// applies the retrieval instruction prefix; Embed does not.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk embeddings and performs dense similarity search.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error)
}

// LexicalSearcher scores chunks against a query with term statistics. The
// index is immutable after build, so lookups carry no context or error.
type LexicalSearcher interface {
	Search(query string, limit int, filter domain.SearchFilter) []domain.ScoredChunk
}

// Reranker rescores fused candidates against the query and keeps topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, topN int) ([]domain.RetrievalCandidate, error)
}

// TextGenerator is the LLM generation capability. GenerateJSON constrains
// decoding to a single JSON object; GenerateStream delivers fragments to
// onDelta as they are produced and returns after the stream completes.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, onDelta func(fragment string) error) (string, error)
}

// IntentRenderer turns a response intent into either a generator prompt or
// a fixed reply. Rendering lives outside the core so the phrasing can
// change without touching dialogue logic.
type IntentRenderer interface {
	Render(intent domain.ResponseIntent) (domain.RenderedResponse, error)
}

// DocumentRepository persists and reads document ingestion state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateCounts(ctx context.Context, id string, pages, chapters, chunks int) error
}

// SessionReportStore persists session evaluation reports.
type SessionReportStore interface {
	SaveReport(ctx context.Context, report *domain.SessionReport) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events and escalation alerts.
type MessageQueue interface {
	PublishDocumentIngest(ctx context.Context, documentID string) error
	SubscribeDocumentIngest(ctx context.Context, handler func(context.Context, string) error) error
	PublishEscalationAlert(ctx context.Context, alert domain.EscalationAlert) error
}

// PageExtractor extracts cleaned per-page text from a stored document.
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.Document) ([]string, error)
}

// ChapterParser splits cleaned document text into chapters.
type ChapterParser interface {
	Parse(text string) []domain.ChapterText
}

// Chunker turns one chapter into enriched corpus chunks. Indices are local
// to the call; the corpus loader assigns global ordinals.
type Chunker interface {
	Chunk(source string, chapter domain.ChapterText) []domain.Chunk
}

// CorpusStore loads the chunk corpus and writes per-document snapshots.
type CorpusStore interface {
	Load(ctx context.Context) ([]domain.Chunk, error)
	SaveDocumentChunks(ctx context.Context, source string, chunks []domain.Chunk) error
}
