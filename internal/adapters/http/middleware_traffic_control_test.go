package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayurmitra/ayurmitra/internal/config"
	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/observability/metrics"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	cfg := config.Config{RateLimitRPS: 1, RateLimitBurst: 1, MaxConcurrent: 8}
	f := &dialogueFake{session: &domain.Session{ID: "sess-1"}}
	handler := NewRouter(cfg, f, ingestSuccessFake{}, docsFake{}, metrics.NewHTTPServerMetrics(apiServiceName)).Handler()

	req1 := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusCreated {
		t.Fatalf("first request expected 201, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
	_, errType := decodeErrorEnvelope(t, res2.Body)
	if errType != "rate_limited" {
		t.Fatalf("expected rate_limited type, got %q", errType)
	}
}

func TestRateLimitDoesNotGateProbes(t *testing.T) {
	cfg := config.Config{RateLimitRPS: 1, RateLimitBurst: 1, MaxConcurrent: 8}
	handler := NewRouter(cfg, &dialogueFake{session: &domain.Session{ID: "sess-1"}},
		ingestSuccessFake{}, docsFake{}, metrics.NewHTTPServerMetrics(apiServiceName)).Handler()

	// Exhaust the bucket on the API surface.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))

	for i := 0; i < 3; i++ {
		probe := httptest.NewRecorder()
		handler.ServeHTTP(probe, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if probe.Code != http.StatusOK {
			t.Fatalf("healthz expected 200 regardless of rate limit, got %d", probe.Code)
		}
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond, nil)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}
	message, errType := decodeErrorEnvelope(t, res2.Body)
	if message == "" || errType != "temporarily_unavailable" {
		t.Fatalf("unexpected overload envelope: message=%q type=%q", message, errType)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestBearerAuthMiddlewareGate(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := bearerAuthMiddleware(base, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token expected 401, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("valid token expected 204, got %d", res.Code)
	}
}

func TestBearerAuthMiddlewareDisabledWithoutKey(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := bearerAuthMiddleware(base, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough without key, got %d", res.Code)
	}
}
