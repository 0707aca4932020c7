package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics carries every API-side instrument on one registry:
// the HTTP traffic set plus the dialogue and retrieval sets.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestInFlight  prometheus.Gauge
	rateLimitedTotal *prometheus.CounterVec
	shedTotal        *prometheus.CounterVec

	turnsTotal        *prometheus.CounterVec
	safetyAlertsTotal *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	differentialTotal *prometheus.CounterVec

	retrievalDuration  *prometheus.HistogramVec
	fusedCandidates    *prometheus.HistogramVec
	rerankedCandidates *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ayurmitra",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)
	shedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "http",
			Name:      "shed_total",
			Help:      "Total requests shed by the concurrency limiter.",
		},
		[]string{"service"},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total completed dialogue turns by response action.",
		},
		[]string{"service", "action"},
	)
	safetyAlertsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "dialogue",
			Name:      "safety_alerts_total",
			Help:      "Total turns stopped by the safety gate.",
		},
		[]string{"service"},
	)
	escalationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "dialogue",
			Name:      "escalations_total",
			Help:      "Total sessions escalated to urgent care by source.",
		},
		[]string{"service", "source"},
	)
	differentialTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ayurmitra",
			Subsystem: "dialogue",
			Name:      "differential_outcomes_total",
			Help:      "Total differential diagnosis outcomes by result.",
		},
		[]string{"service", "result", "degraded"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Hybrid retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	fusedCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "retrieval",
			Name:      "fused_candidates",
			Help:      "Distribution of candidate pool sizes after fusion.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	rerankedCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ayurmitra",
			Subsystem: "retrieval",
			Name:      "reranked_candidates",
			Help:      "Distribution of candidate counts delivered after reranking.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rateLimitedTotal,
		shedTotal,
		turnsTotal,
		safetyAlertsTotal,
		escalationsTotal,
		differentialTotal,
		retrievalDuration,
		fusedCandidates,
		rerankedCandidates,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		rateLimitedTotal:   rateLimitedTotal,
		shedTotal:          shedTotal,
		turnsTotal:         turnsTotal,
		safetyAlertsTotal:  safetyAlertsTotal,
		escalationsTotal:   escalationsTotal,
		differentialTotal:  differentialTotal,
		retrievalDuration:  retrievalDuration,
		fusedCandidates:    fusedCandidates,
		rerankedCandidates: rerankedCandidates,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses identifiers so metric cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sessions/") && strings.HasSuffix(path, "/turns"):
		return "/v1/sessions/{session_id}/turns"
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{session_id}"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordShed(service string) {
	m.shedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordTurn(service, action string) {
	if action == "" {
		action = "unknown"
	}
	m.turnsTotal.WithLabelValues(service, action).Inc()
}

func (m *HTTPServerMetrics) RecordSafetyAlert(service string) {
	m.safetyAlertsTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordEscalation(service, source string) {
	if source == "" {
		source = "unknown"
	}
	m.escalationsTotal.WithLabelValues(service, source).Inc()
}

func (m *HTTPServerMetrics) RecordDifferential(service, result string, degraded bool) {
	if result == "" {
		result = "unknown"
	}
	m.differentialTotal.WithLabelValues(service, result, strconv.FormatBool(degraded)).Inc()
}

func (m *HTTPServerMetrics) RecordRetrieval(service string, fused, reranked int, duration time.Duration) {
	m.retrievalDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.fusedCandidates.WithLabelValues(service).Observe(float64(fused))
	m.rerankedCandidates.WithLabelValues(service).Observe(float64(reranked))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
