package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// streamSessionTurn runs a turn with reply fragments flushed as SSE events.
// The session is validated before headers go out: once the stream starts the
// status line is committed, so lookup failures must surface as plain HTTP
// errors first. Fragments are JSON objects to keep multi-line text inside
// one data: frame.
func (rt *Router) streamSessionTurn(w http.ResponseWriter, r *http.Request, sessionID, message string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		// Buffering proxies that strip Flush get the plain JSON result.
		result, err := rt.dialogue.RunTurn(r.Context(), sessionID, message, nil)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		rt.recordTurn(result)
		writeJSON(w, http.StatusOK, result)
		return
	}

	if _, err := rt.dialogue.GetSession(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	result, err := rt.dialogue.RunTurn(r.Context(), sessionID, message, func(fragment string) {
		writeSSEEvent(w, flusher, map[string]string{"delta": fragment})
	})
	if err != nil {
		// The status is committed; the stream ends with an error event and
		// no DONE marker so clients treat the turn as aborted.
		slog.Error("turn_stream_failed",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"error", err)
		writeSSEEvent(w, flusher, map[string]string{"error": err.Error()})
		return
	}
	rt.recordTurn(result)

	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSEEvent(w io.Writer, flusher http.Flusher, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return
	}
	flusher.Flush()
}
