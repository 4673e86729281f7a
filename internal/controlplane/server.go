// Package controlplane is the Control Plane (spec §4.8): a synchronous
// JSON-RPC surface at POST /mcp-proxy and an SSE transport at GET/POST
// /sse, both sharing the same dispatch table, plus a health check and a
// small set of supplemental endpoints the distillation dropped.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/discoverycache"
	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/proxyrouter"
	"github.com/mcpctl/orchestrator/internal/registryclient"
	"github.com/mcpctl/orchestrator/internal/supervisor"
)

// DefaultAddr is the address the control plane binds by default.
const DefaultAddr = "127.0.0.1:3000"

// Server is the control plane's http.Handler.
type Server struct {
	store     *catalog.Store
	sup       *supervisor.Supervisor
	discovery *discoverycache.Cache
	registry  *registryclient.Client
	router    *proxyrouter.Router
	sessions  *sessionTable
	mux       *http.ServeMux
}

// New builds a Server and wires its routes.
func New(store *catalog.Store, sup *supervisor.Supervisor, discovery *discoverycache.Cache, registry *registryclient.Client, router *proxyrouter.Router) *Server {
	s := &Server{
		store:     store,
		sup:       sup,
		discovery: discovery,
		registry:  registry,
		router:    router,
		sessions:  newSessionTable(),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /mcp-proxy", s.handleMCPProxy)
	s.mux.HandleFunc("GET /sse", s.handleSSEStream)
	s.mux.HandleFunc("POST /sse", s.handleSSEPost)
	s.mux.HandleFunc("POST /verify", s.handleVerify)
	s.mux.HandleFunc("GET /settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /settings", s.handleUpdateSettings)
	s.mux.HandleFunc("GET /logs", s.handleGetLogs)
	s.mux.HandleFunc("GET /logs/stream", s.handleLogStream)
	s.mux.HandleFunc("DELETE /logs", s.handleClearLogs)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleMCPProxy(w http.ResponseWriter, r *http.Request) {
	var req mcprotocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(errorResponse(nil, mcprotocol.CodeParseError, "parse error"))
		return
	}

	resp := s.dispatch(r.Context(), req)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ServerID string `json:"server_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ServerID == "" {
		http.Error(w, "server_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.verifyServerTools(r.Context(), body.ServerID)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	hidden, _ := s.store.GetSetting(catalog.SettingToolsHidden)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"tools_hidden": hidden == "true"})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToolsHidden bool `json:"tools_hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	value := "false"
	if body.ToolsHidden {
		value = "true"
	}
	if err := s.store.SaveSetting(catalog.SettingToolsHidden, value); err != nil {
		logger.AddLog("ERROR", "saving tools_hidden setting: "+err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.discovery.SetToolsHidden(body.ToolsHidden)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"tools_hidden": body.ToolsHidden})
}

// updateServerEnabled flips a server's enabled flag and converges its
// live client accordingly: disabling kills the process and drops its
// cached tools, enabling triggers a restart.
func (s *Server) updateServerEnabled(ctx context.Context, serverID string, enabled bool) error {
	def, err := s.store.GetServer(serverID)
	if err != nil {
		return err
	}
	def.Enabled = enabled
	if err := s.store.SaveServer(def); err != nil {
		return err
	}

	if !enabled {
		if err := s.sup.KillProcess(serverID); err != nil {
			return err
		}
		s.discovery.Remove(serverID)
		return nil
	}
	return s.sup.RestartServer(ctx, serverID)
}

// verifyServerTools restarts serverID standalone and diffs its freshly
// discovered tool list against what was persisted before the restart,
// reporting which tool ids appeared and which disappeared.
func (s *Server) verifyServerTools(ctx context.Context, serverID string) (map[string]any, error) {
	before, err := s.store.GetServerTools(serverID)
	if err != nil {
		return nil, err
	}
	beforeIDs := make(map[string]bool, len(before))
	for _, t := range before {
		beforeIDs[t.ID] = true
	}

	if err := s.sup.RestartServer(ctx, serverID); err != nil {
		return nil, err
	}

	after := s.discovery.Get(serverID)
	afterIDs := make(map[string]bool, len(after))
	var added []string
	for _, t := range after {
		afterIDs[t.ID] = true
		if !beforeIDs[t.ID] {
			added = append(added, t.ID)
		}
	}
	var missing []string
	for _, t := range before {
		if !afterIDs[t.ID] {
			missing = append(missing, t.ID)
		}
	}

	return map[string]any{"server_id": serverID, "added": added, "missing": missing}, nil
}
