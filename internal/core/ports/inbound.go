package ports

import (
	"context"
	"io"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

// StreamSink receives reply fragments as they are generated. A nil sink
// means the caller wants only the assembled reply.
type StreamSink func(fragment string)

// DialogueService is the inbound contract for diagnostic sessions. Turns
// within one session are serialized by the implementation.
type DialogueService interface {
	StartSession(ctx context.Context) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	RunTurn(ctx context.Context, sessionID, message string, sink StreamSink) (*domain.TurnResult, error)
	EndSession(ctx context.Context, sessionID string) (*domain.SessionReport, error)
}

// RetrievalService exposes the hybrid retrieval engine on its own.
type RetrievalService interface {
	Search(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous ingestion.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
