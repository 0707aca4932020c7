package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is one source PDF of the knowledge corpus and its ingestion state.
type Document struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	StoragePath  string         `json:"storage_path"`
	Status       DocumentStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	PageCount    int            `json:"page_count,omitempty"`
	ChapterCount int            `json:"chapter_count,omitempty"`
	ChunkCount   int            `json:"chunk_count,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
