// Package discoverycache implements the Tool Discovery Cache (spec §4.6):
// it normalizes a freshly started backend's tools/list response, keeps an
// in-memory map of server id to its advertised tools, and falls back to a
// placeholder tool when discovery itself fails so the proxy can still
// route calls to a server whose tools/list is broken. A server that
// answers with an empty list gets no tools and no placeholder.
package discoverycache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
)

// ListTimeout is how long tools/list is given to answer on (re)start.
const ListTimeout = 10 * time.Second

// Status distinguishes a server that genuinely has no tools from one
// whose discovery call itself failed.
type Status string

const (
	// StatusOK means tools/list answered, even with zero tools.
	StatusOK Status = "ok"
	// StatusFailed means tools/list timed out, errored, or returned an
	// unparseable response; the placeholder tool has been installed.
	StatusFailed Status = "failed"
)

// caller is the minimal transport surface discovery needs; satisfied by
// *stdiorpc.Transport.
type caller interface {
	RPCCall(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error)
}

// Discover calls tools/list on a freshly initialized backend and
// normalizes the result. On any failure it returns a single placeholder
// tool ({id: "main", name: serverName, description: serverDesc}) and
// StatusFailed so the proxy can still address the server, while the
// caller observes the distinct failure status.
func Discover(ctx context.Context, t caller, serverID, serverName, serverDesc string) ([]catalog.ServerToolInfo, Status) {
	result, err := t.RPCCall(ctx, "tools/list", nil, ListTimeout)
	if err != nil {
		logger.AddLog("ERROR", fmt.Sprintf("[%s] tools/list failed: %v", serverID, err))
		return placeholderTools(serverID, serverName, serverDesc), StatusFailed
	}

	tools, ok := normalize(result)
	if !ok {
		logger.AddLog("ERROR", fmt.Sprintf("[%s] tools/list returned an unrecognized shape", serverID))
		return placeholderTools(serverID, serverName, serverDesc), StatusFailed
	}

	out := make([]catalog.ServerToolInfo, 0, len(tools))
	for _, raw := range tools {
		var wire struct {
			ID          string                 `json:"id"`
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			InputSchema *mcprotocol.JSONSchema `json:"inputSchema"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			continue
		}
		id := wire.ID
		if id == "" {
			id = wire.Name
		}
		out = append(out, catalog.ServerToolInfo{
			ServerID:    serverID,
			ID:          id,
			Name:        wire.Name,
			Description: wire.Description,
			InputSchema: wire.InputSchema,
		})
	}
	return out, StatusOK
}

// normalize accepts a tools/list result as a bare array, a {"tools": [...]}
// wrapper, or (as a last resort) wraps the whole result as a single tool
// document so discovery never outright fails on an unexpected but valid
// JSON shape.
func normalize(result json.RawMessage) ([]json.RawMessage, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(result, &arr); err == nil {
		return arr, true
	}

	var wrapped struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.Tools != nil {
		return wrapped.Tools, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(result, &obj); err == nil && len(obj) > 0 {
		return []json.RawMessage{result}, true
	}

	return nil, false
}

func placeholderTools(serverID, serverName, serverDesc string) []catalog.ServerToolInfo {
	return []catalog.ServerToolInfo{{
		ServerID:    serverID,
		ID:          "main",
		Name:        serverName,
		Description: serverDesc,
	}}
}

// Cache holds the in-memory, per-server-id view of discovered tools. It
// is guarded by its own reader-writer lock, kept separate from the
// supervisor's client-table lock to avoid contention between the two.
type Cache struct {
	mu         sync.RWMutex
	byServer   map[string][]catalog.ServerToolInfo
	toolsHidden bool
}

func NewCache() *Cache {
	return &Cache{byServer: make(map[string][]catalog.ServerToolInfo)}
}

// Set replaces the cached tools for one server, overwriting any previous
// entry — used after every (re)start, successful or fallen back to the
// placeholder.
func (c *Cache) Set(serverID string, tools []catalog.ServerToolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byServer[serverID] = tools
}

// Remove drops a server's cached tools, used when it is killed or
// uninstalled.
func (c *Cache) Remove(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byServer, serverID)
}

// Get returns one server's cached tools.
func (c *Cache) Get(serverID string) []catalog.ServerToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byServer[serverID]
}

// SetToolsHidden toggles the user-controlled kill-switch that makes
// ListAll return nothing regardless of what is cached.
func (c *Cache) SetToolsHidden(hidden bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsHidden = hidden
}

// ListAll concatenates every cached server's tools, in map iteration
// order, unless tools are hidden.
func (c *Cache) ListAll() []catalog.ServerToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.toolsHidden {
		return nil
	}
	var out []catalog.ServerToolInfo
	for _, tools := range c.byServer {
		out = append(out, tools...)
	}
	return out
}

// FindByIDOrName locates the unique (serverID, tool) pair whose advertised
// tool matches name by id first, then by name, breaking ties by
// insertion order across servers. serverOrder fixes that order since Go
// map iteration is randomized.
func (c *Cache) FindByIDOrName(name string, serverOrder []string) (catalog.ServerToolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.toolsHidden {
		return catalog.ServerToolInfo{}, false
	}

	for _, serverID := range serverOrder {
		for _, tool := range c.byServer[serverID] {
			if tool.ID == name {
				return tool, true
			}
		}
	}
	for _, serverID := range serverOrder {
		for _, tool := range c.byServer[serverID] {
			if tool.Name == name {
				return tool, true
			}
		}
	}
	return catalog.ServerToolInfo{}, false
}
