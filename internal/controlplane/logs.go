package controlplane

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcpctl/orchestrator/internal/logger"
)

// handleGetLogs returns the in-memory log buffer as a JSON snapshot.
func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"logs": logger.GetLogs()})
}

// handleLogStream opens a long-lived SSE connection that relays every new
// log entry as it's recorded, so a desktop UI can tail the orchestrator's
// own activity without polling GET /logs.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := logger.Subscribe()
	defer logger.Unsubscribe(sub)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
	flusher.Flush()

	for {
		select {
		case entry, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleClearLogs truncates both the in-memory buffer and the on-disk log
// file, returning the file's path so a caller can confirm which file was
// cleared.
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := logger.ClearLogs(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"log_file": logger.GetLogFilePath()})
}
