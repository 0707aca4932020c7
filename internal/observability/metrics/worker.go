package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal       *prometheus.CounterVec
	processDuration    *prometheus.HistogramVec
	processInFlight    prometheus.Gauge
	queueLag           *prometheus.HistogramVec
	chunksWritten      *prometheus.CounterVec
	embedBatchDuration *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ayurmitra",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document registration and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	chunksWritten := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "worker",
			Name:      "chunks_written_total",
			Help:      "Total corpus chunks written by completed ingestions.",
		},
		[]string{"service"},
	)
	embedBatchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "worker",
			Name:      "embed_batch_duration_seconds",
			Help:      "Embedding batch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		chunksWritten,
		embedBatchDuration,
	)

	return &WorkerMetrics{
		registry:           registry,
		processTotal:       processTotal,
		processDuration:    processDuration,
		processInFlight:    processInFlight,
		queueLag:           queueLag,
		chunksWritten:      chunksWritten,
		embedBatchDuration: embedBatchDuration,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) AddChunksWritten(service string, count int) {
	if count <= 0 {
		return
	}
	m.chunksWritten.WithLabelValues(service).Add(float64(count))
}

// InstrumentEmbedder times every Embed call of the wrapped embedder. Wrapped
// under the batching decorator each timed call is exactly one batch.
func (m *WorkerMetrics) InstrumentEmbedder(service string, base ports.Embedder) ports.Embedder {
	return &timedEmbedder{service: service, metrics: m, base: base}
}

type timedEmbedder struct {
	service string
	metrics *WorkerMetrics
	base    ports.Embedder
}

func (e *timedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.base.Embed(ctx, texts)
	e.metrics.embedBatchDuration.WithLabelValues(e.service).Observe(time.Since(start).Seconds())
	return vectors, err
}

func (e *timedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.base.EmbedQuery(ctx, text)
}
