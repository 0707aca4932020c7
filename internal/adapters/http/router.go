// Package httpadapter exposes the diagnostic dialogue and document ingestion
// services over HTTP. All bodies are JSON except SSE turn streams and the
// Prometheus endpoint.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayurmitra/ayurmitra/internal/config"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
	"github.com/ayurmitra/ayurmitra/internal/observability/metrics"
)

const (
	apiServiceName = "api"

	// backpressureWait bounds how long a request may queue for a handler
	// slot before it is shed.
	backpressureWait = time.Second

	healthCheckTimeout = 2 * time.Second
)

// HealthCheck is a named dependency probe run by the healthz endpoint.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Router struct {
	cfg      config.Config
	dialogue ports.DialogueService
	ingestor ports.DocumentIngestor
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
	health   []HealthCheck
}

func NewRouter(
	cfg config.Config,
	dialogue ports.DialogueService,
	ingestor ports.DocumentIngestor,
	docs ports.DocumentReader,
	serverMetrics *metrics.HTTPServerMetrics,
	health ...HealthCheck,
) *Router {
	return &Router{
		cfg:      cfg,
		dialogue: dialogue,
		ingestor: ingestor,
		docs:     docs,
		metrics:  serverMetrics,
		health:   health,
	}
}

// Handler assembles the middleware chain. Request ID, access log and metrics
// wrap everything; rate limiting, backpressure and the optional bearer gate
// protect only the /v1 surface so probes and scrapes are never shed.
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/sessions", rt.createSession)
	api.HandleFunc("/v1/sessions/", rt.sessionSubresource)
	api.HandleFunc("/v1/documents", rt.uploadDocument)
	api.HandleFunc("/v1/documents/", rt.getDocumentByID)

	limiter := rate.NewLimiter(rate.Limit(rt.cfg.RateLimitRPS), rt.cfg.RateLimitBurst)

	var protected http.Handler = api
	protected = bearerAuthMiddleware(protected, rt.cfg.APIKey)
	protected = backpressureMiddleware(protected, rt.cfg.MaxConcurrent, backpressureWait, func() {
		rt.metrics.RecordShed(apiServiceName)
	})
	protected = rateLimitMiddleware(protected, limiter, func() {
		rt.metrics.RecordRateLimited(apiServiceName)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.Handle("/v1/", protected)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(apiServiceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for _, check := range rt.health {
		if err := check.Ping(ctx); err != nil {
			slog.Warn("health_check_failed", "check", check.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"failed": check.Name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
