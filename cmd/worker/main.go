package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/bootstrap"
	"github.com/ayurmitra/ayurmitra/internal/config"
	"github.com/ayurmitra/ayurmitra/internal/infrastructure/watcher"
	"github.com/ayurmitra/ayurmitra/internal/observability/logging"
)

const workerService = "worker"

func main() {
	cfg := config.Load()
	logging.SetupDefault(workerService, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if cfg.WatchDir != "" {
		w := watcher.New(cfg.WatchDir, app.Ingestor, cfg.WatchDebounce)
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("pdf_watcher_stopped", "error", err)
			}
		}()
		slog.Info("pdf_watcher_started", "dir", cfg.WatchDir)
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSIngestSubject)
	err = app.Queue.SubscribeDocumentIngest(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerDocTimeout)
		defer cancel()

		if doc, err := app.Documents.GetByID(processCtx, documentID); err == nil {
			app.Metrics.ObserveQueueLag(workerService, time.Since(doc.CreatedAt))
		}

		app.Metrics.StartDocument()
		start := time.Now()
		processErr := app.Processor.ProcessByID(processCtx, documentID)
		app.Metrics.FinishDocument(workerService, time.Since(start), processErr)

		if processErr == nil {
			if doc, err := app.Documents.GetByID(processCtx, documentID); err == nil {
				app.Metrics.AddChunksWritten(workerService, doc.ChunkCount)
			}
		}
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
