package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.PageExtractor
	chapters  ports.ChapterParser
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorIndex
	corpus    ports.CorpusStore
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.PageExtractor,
	chapters ports.ChapterParser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorIndex,
	corpus ports.CorpusStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chapters:  chapters,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		corpus:    corpus,
	}
}

var _ ports.DocumentProcessor = (*ProcessDocumentUseCase)(nil)

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	pages, err := uc.extractPages(ctx, doc)
	if err != nil {
		return err
	}

	source := sourceName(doc.Filename)
	chapters := uc.parseChapters(pages)
	chunks, err := uc.chunkChapters(source, chapters)
	if err != nil {
		return err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return err
	}

	if err := uc.vectorDB.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}

	// The snapshot is what the lexical index and corpus reloads are built
	// from, so it is written only after indexing succeeded.
	if err := uc.corpus.SaveDocumentChunks(ctx, source, chunks); err != nil {
		return fmt.Errorf("save chunk snapshot: %w", err)
	}

	if err := uc.repo.UpdateCounts(ctx, doc.ID, len(pages), len(chapters), len(chunks)); err != nil {
		return fmt.Errorf("update document counts: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractPages(ctx context.Context, doc *domain.Document) ([]string, error) {
	pages, err := uc.extractor.ExtractPages(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", errors.New("no extractable text"))
	}
	return pages, nil
}

func (uc *ProcessDocumentUseCase) parseChapters(pages []string) []domain.ChapterText {
	return uc.chapters.Parse(strings.Join(pages, "\n"))
}

// chunkChapters runs the chunker per chapter and assigns document-local
// ordinals; the corpus loader renumbers them globally at load time.
func (uc *ProcessDocumentUseCase) chunkChapters(source string, chapters []domain.ChapterText) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, chapter := range chapters {
		for _, chunk := range uc.chunker.Chunk(source, chapter) {
			chunk.Index = len(chunks)
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errEmptyDocument)
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
