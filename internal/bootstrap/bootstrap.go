// Package bootstrap wires configuration, infrastructure adapters and use
// cases into the role-specific applications behind cmd/api, cmd/worker and
// cmd/chat. Every dependency is constructed here and injected; nothing in
// the core reaches for ambient state.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/config"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
	"github.com/ayurmitra/ayurmitra/internal/core/usecase"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/chunking"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/corpus"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/embedding"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/extractor/pdfdoc"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/lexical"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/llm/ollama"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/llm/prompt"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/queue/nats"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/reports"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/repository/postgres"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/rerank"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/resilience"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/storage/localfs"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/vector/qdrant"
	"github.com/ayurmitra/ayurmitra/internal/observability/metrics"
)

// API carries everything the HTTP binary serves: the dialogue service, the
// document upload path and the shared instruments, plus raw handles for
// health probes and shutdown.
type API struct {
	Config    config.Config
	Dialogue  ports.DialogueService
	Ingestor  ports.DocumentIngestor
	Documents ports.DocumentReader
	Metrics   *metrics.HTTPServerMetrics
	DB        *sql.DB

	closeFn func()
}

func NewAPI(ctx context.Context, cfg config.Config) (*API, error) {
	db, docRepo, err := openDocumentStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reportRepo := postgres.NewSessionReportRepository(db)
	if err := reportRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure session reports schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		IngestSubject:      cfg.NATSIngestSubject,
		AlertSubject:       cfg.NATSAlertSubject,
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	dialogue, err := buildDialogue(ctx, cfg, executor, queue, reportRepo,
		func(fused, kept int, elapsed time.Duration) {
			serverMetrics.RecordRetrieval("api", fused, kept, elapsed)
		})
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	return &API{
		Config:    cfg,
		Dialogue:  dialogue,
		Ingestor:  usecase.NewIngestDocumentUseCase(docRepo, storage, queue),
		Documents: docRepo,
		Metrics:   serverMetrics,
		DB:        db,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker carries the ingestion pipeline: the queue subscription handle, the
// document processor and the upload path the directory watcher feeds.
type Worker struct {
	Config    config.Config
	Queue     *nats.Queue
	Documents ports.DocumentRepository
	Processor ports.DocumentProcessor
	Ingestor  ports.DocumentIngestor
	Metrics   *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	db, docRepo, err := openDocumentStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		IngestSubject:      cfg.NATSIngestSubject,
		AlertSubject:       cfg.NATSAlertSubject,
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Temperature:        cfg.GenerationTemperature,
		ResilienceExecutor: executor,
	})
	embedder, err := embedding.NewBatchingEmbedder(
		workerMetrics.InstrumentEmbedder("worker", ollama.NewEmbedder(ollamaClient)),
		cfg.EmbedBatchSize, cfg.EmbedPoolSize)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init batching embedder: %w", err)
	}

	processor := usecase.NewProcessDocumentUseCase(
		docRepo,
		pdfdoc.NewExtractor(storage),
		chunking.NewMarkerParser(),
		chunking.NewWordChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{ResilienceExecutor: executor}),
		corpus.NewStore(cfg.ChunkDir),
	)

	return &Worker{
		Config:    cfg,
		Queue:     queue,
		Documents: docRepo,
		Processor: processor,
		Ingestor:  usecase.NewIngestDocumentUseCase(docRepo, storage, queue),
		Metrics:   workerMetrics,
		closeFn: func() {
			embedder.Release()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Chat carries the terminal dialogue loop. Reports land in the local JSON
// store; the queue is optional, so escalation alerts degrade to log lines
// when no broker is reachable.
type Chat struct {
	Config   config.Config
	Dialogue ports.DialogueService

	closeFn func()
}

func NewChat(ctx context.Context, cfg config.Config) (*Chat, error) {
	reportStore, err := reports.NewFileStore(cfg.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("init report store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var queue ports.MessageQueue
	closeFn := func() {}
	noRetry := false
	natsQueue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		IngestSubject:        cfg.NATSIngestSubject,
		AlertSubject:         cfg.NATSAlertSubject,
		RetryOnFailedConnect: &noRetry,
		ResilienceExecutor:   executor,
	})
	if err != nil {
		slog.Warn("chat_queue_unavailable", "error", err)
	} else {
		queue = natsQueue
		closeFn = natsQueue.Close
	}

	dialogue, err := buildDialogue(ctx, cfg, executor, queue, reportStore, nil)
	if err != nil {
		closeFn()
		return nil, err
	}

	return &Chat{
		Config:   cfg,
		Dialogue: dialogue,
		closeFn:  closeFn,
	}, nil
}

func (c *Chat) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

func openDocumentStore(ctx context.Context, cfg config.Config) (*sql.DB, *postgres.DocumentRepository, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	return db, repo, nil
}

// buildDialogue assembles the full per-turn stack: corpus, both retrievers,
// fusion and rerank, the safety engine, the differential pipeline and the
// session registry. Loading the corpus or embedding the risk catalogue
// failing here is a startup failure: a dialogue service without grounding
// or without its safety gate must not come up.
func buildDialogue(
	ctx context.Context,
	cfg config.Config,
	executor *resilience.Executor,
	queue ports.MessageQueue,
	reportStore ports.SessionReportStore,
	onRetrieve func(fused, kept int, elapsed time.Duration),
) (*usecase.SessionManager, error) {
	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Temperature:        cfg.GenerationTemperature,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	chunks, err := corpus.NewStore(cfg.ChunkDir).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	var reranker ports.Reranker = rerank.NewHeuristic()
	if cfg.RerankerURL != "" {
		primary := rerank.NewWithOptions(cfg.RerankerURL, rerank.Options{
			Timeout:            cfg.RerankerTimeout,
			ResilienceExecutor: executor,
		})
		reranker = rerank.NewWithFallback(primary, rerank.NewHeuristic())
	}

	retriever := usecase.NewHybridRetriever(
		embedder,
		qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{ResilienceExecutor: executor}),
		lexical.NewIndex(chunks),
		reranker,
		usecase.RetrievalConfig{
			DenseCandidates:   cfg.DenseCandidates,
			LexicalCandidates: cfg.LexicalCandidates,
			Fusion: usecase.FusionConfig{
				RRFK:          cfg.FusionRRFK,
				DenseWeight:   cfg.DenseWeight,
				LexicalWeight: cfg.LexicalWeight,
				Keep:          cfg.FusionKeep,
			},
			RerankKeep: cfg.RerankKeep,
			TopK:       cfg.RetrievalTopK,
			OnRetrieve: onRetrieve,
		},
	)

	catalogue, err := config.LoadRiskCatalogue(cfg.RiskCataloguePath)
	if err != nil {
		return nil, err
	}
	safety, err := usecase.NewSafetyEngine(ctx, embedder, catalogue, usecase.SafetyConfig{
		Threshold: cfg.SafetyThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("init safety engine: %w", err)
	}

	orchestrator := usecase.NewOrchestrator(
		retriever,
		usecase.NewQueryRewriter(generator),
		safety,
		usecase.NewDifferentialService(generator),
		generator,
		prompt.NewRenderer(),
		usecase.DialogueConfig{
			MinGatheringTurns:      cfg.MinGatheringTurns,
			ExtendedGatheringTurns: cfg.ExtendedGatheringTurns,
			ConfidenceThreshold:    cfg.ConfidenceThreshold,
			DuplicateOverlap:       cfg.DuplicateOverlap,
			QuestionRetryLimit:     cfg.QuestionRetryLimit,
			HistoryMaxTurns:        cfg.HistoryMaxTurns,
			MaxRemedies:            cfg.MaxRemedies,
			DialogueTopK:           cfg.DialogueTopK,
			RiskProfileQuestion:    cfg.RiskProfileQuestion,
		},
	)

	return usecase.NewSessionManager(orchestrator, queue, reportStore), nil
}
