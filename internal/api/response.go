package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// writeJSON writes a JSON response with the given status code.
// If encoding fails after WriteHeader, the status is already on the wire;
// the error is only logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeSSE writes one server-sent event frame and flushes it to the client.
// Data is JSON-encoded; SSE forbids raw newlines inside a data line, which
// JSON escaping guarantees.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode SSE data", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	writeSSE(w, flusher, "chunk", SSEChunkData{Text: text})
}

func writeSSEDone(w http.ResponseWriter, flusher http.Flusher, response string) {
	writeSSE(w, flusher, "done", SSEDoneData{Response: response})
}

func writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	writeSSE(w, flusher, "error", SSEErrorData{Code: code, Message: message})
}
