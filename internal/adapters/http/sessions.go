package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s, err := rt.dialogue.StartSession(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID})
}

// sessionSubresource dispatches /v1/sessions/{id} and /v1/sessions/{id}/turns.
func (rt *Router) sessionSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rt.endSession(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "turns":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rt.runSessionTurn(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "unknown session resource")
	}
}

func (rt *Router) runSessionTurn(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if wantsEventStream(r) {
		rt.streamSessionTurn(w, r, sessionID, req.Message)
		return
	}

	result, err := rt.dialogue.RunTurn(r.Context(), sessionID, req.Message, nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rt.recordTurn(result)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	report, err := rt.dialogue.EndSession(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// recordTurn feeds the dialogue instruments. Differential counts key off the
// attached outcome, so retry turns that withhold their interim report do not
// inflate the resolution counters.
func (rt *Router) recordTurn(result *domain.TurnResult) {
	rt.metrics.RecordTurn(apiServiceName, string(result.Intent))
	if result.Intent == domain.IntentSafetyAlert {
		rt.metrics.RecordSafetyAlert(apiServiceName)
	}
	if result.Alert != nil {
		rt.metrics.RecordEscalation(apiServiceName, string(result.Alert.Source))
	}
	if result.Outcome == nil {
		return
	}
	switch result.Intent {
	case domain.IntentDiagnosis:
		rt.metrics.RecordDifferential(apiServiceName, "diagnosed", result.Outcome.Degraded)
	case domain.IntentUncertainFinal:
		rt.metrics.RecordDifferential(apiServiceName, "uncertain", result.Outcome.Degraded)
	case domain.IntentEscalation:
		rt.metrics.RecordDifferential(apiServiceName, "escalated", result.Outcome.Degraded)
	}
}

func wantsEventStream(r *http.Request) bool {
	if r.URL.Query().Get("stream") == "1" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
