package controlplane

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
)

const (
	sseHeartbeat   = 30 * time.Second
	sseSendTimeout = 2 * time.Second
	maxSSEBody     = 4 * 1024 * 1024 // spec §4.8: 4 MiB cap on POST /sse bodies.
)

// session is one SSE client's mailbox: responses from dispatch and any
// future server-initiated notifications both flow out through outbound,
// re-emitted as "event: message" frames by the stream loop.
type session struct {
	id       string
	outbound chan []byte
}

type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*session)}
}

func (t *sessionTable) create() *session {
	s := &session{id: uuid.NewString(), outbound: make(chan []byte, 16)}
	t.mu.Lock()
	t.sessions[s.id] = s
	t.mu.Unlock()
	return s
}

func (t *sessionTable) get(id string) (*session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

func (t *sessionTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[id]; ok {
		close(s.outbound)
		delete(t.sessions, id)
	}
}

// handleSSEStream opens the long-lived event stream. It mints a session,
// announces its id via "event: endpoint", then relays outbound frames and
// a periodic heartbeat until the client disconnects.
func (s *Server) handleSSEStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.sessions.create()
	defer s.sessions.remove(sess.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: ?sessionId=%s\n\n", sess.id)
	flusher.Flush()

	logger.AddLog("INFO", fmt.Sprintf("SSE session opened: %s", sess.id))

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sess.outbound:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", frame)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: pulse\ndata: {\"session\":%q}\n\n", sess.id)
			flusher.Flush()
		case <-r.Context().Done():
			logger.AddLog("INFO", fmt.Sprintf("SSE session closed: %s", sess.id))
			return
		}
	}
}

// handleSSEPost forwards a JSON-RPC request body into an existing
// session's command path, dispatches it synchronously, and pushes the
// response onto the session's outbound channel for the stream loop to
// re-emit. Falls back to returning the response directly in the HTTP
// body if the stream can't accept it within sseSendTimeout.
func (s *Server) handleSSEPost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSSEBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var req mcprotocol.Request
	if err := json.Unmarshal(body, &req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(errorResponse(nil, mcprotocol.CodeParseError, "parse error"))
		return
	}

	if req.ID == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := s.dispatch(r.Context(), req)
	frame, _ := json.Marshal(resp)

	select {
	case sess.outbound <- frame:
		w.WriteHeader(http.StatusAccepted)
	case <-time.After(sseSendTimeout):
		w.Header().Set("Content-Type", "application/json")
		w.Write(frame)
	}
}
