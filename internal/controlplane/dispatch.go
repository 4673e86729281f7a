package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcpctl/orchestrator/internal/mcprotocol"
)

const protocolVersion = "2024-11-05"

func errorResponse(id any, code int, message string) mcprotocol.Response {
	return mcprotocol.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &mcprotocol.RPCError{Code: code, Message: message},
	}
}

func resultResponse(id any, result any) mcprotocol.Response {
	b, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, mcprotocol.CodeInternalError, err.Error())
	}
	return mcprotocol.Response{JSONRPC: "2.0", ID: id, Result: b}
}

// dispatch routes one JSON-RPC request through the Proxy Router and the
// orchestrator's own registry/catalog meta-methods. It never panics:
// invalid params become -32602, unknown methods -32601, and any
// downstream failure -32000 carrying the underlying message, per the
// error handling design's propagation policy for user-initiated actions.
func (s *Server) dispatch(ctx context.Context, req mcprotocol.Request) mcprotocol.Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]string{"name": "mcpctl-orchestrator", "version": "0.1.0"},
		})

	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": s.router.ListTools()})

	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return errorResponse(req.ID, mcprotocol.CodeInvalidParams, "name is required")
		}
		result, err := s.router.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, result)

	case "prompts/list":
		return resultResponse(req.ID, map[string]any{"prompts": []any{}})

	case "resources/list":
		return resultResponse(req.ID, map[string]any{"resources": []any{}})

	case "registry/list":
		catalog, err := s.registry.GetRegistry(ctx)
		if err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, map[string]any{"tools": catalog.Tools})

	case "registry/install":
		var params struct {
			ToolID string `json:"tool_id"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.ToolID == "" {
			return errorResponse(req.ID, mcprotocol.CodeInvalidParams, "tool_id is required")
		}
		result, err := s.router.CallTool(ctx, "register_server", map[string]any{"tool_id": params.ToolID})
		if err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, result)

	case "registry/import":
		var params struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.URL == "" {
			return errorResponse(req.ID, mcprotocol.CodeInvalidParams, "url is required")
		}
		return resultResponse(req.ID, importFromURL(params.URL))

	case "server/config":
		var params struct {
			ServerID string         `json:"server_id"`
			Env      map[string]any `json:"env"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.ServerID == "" || params.Env == nil {
			return errorResponse(req.ID, mcprotocol.CodeInvalidParams, "server_id and env are required")
		}
		result, err := s.router.CallTool(ctx, "configure_server", map[string]any{"server_id": params.ServerID, "env": params.Env})
		if err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, result)

	case "server/update":
		var params struct {
			ServerID string `json:"server_id"`
			Enabled  *bool  `json:"enabled"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.ServerID == "" || params.Enabled == nil {
			return errorResponse(req.ID, mcprotocol.CodeInvalidParams, "server_id and enabled are required")
		}
		if err := s.updateServerEnabled(ctx, params.ServerID, *params.Enabled); err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, map[string]any{"server_id": params.ServerID, "enabled": *params.Enabled})

	case "server/restart":
		var params struct {
			ServerID string `json:"server_id"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.ServerID == "" {
			return errorResponse(req.ID, mcprotocol.CodeInvalidParams, "server_id is required")
		}
		if err := s.sup.RestartServer(ctx, params.ServerID); err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, map[string]any{"server_id": params.ServerID, "status": string(s.sup.Status(params.ServerID))})

	case "catalog/clear":
		if err := s.store.ClearAll(); err != nil {
			return errorResponse(req.ID, mcprotocol.CodeServerError, err.Error())
		}
		return resultResponse(req.ID, map[string]any{"status": "cleared"})

	default:
		return errorResponse(req.ID, mcprotocol.CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

// importFromURL builds a registration scaffold from a GitHub repository
// URL without contacting GitHub: a suggested id, name and package are
// derived straight from the path, leaving runtime and Command/Args for
// the caller to fill in before calling register_server. Fetching the
// repo's actual MCP manifest is an external-interface concern outside the
// orchestrator's core (spec.md §6).
func importFromURL(url string) map[string]any {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(url, "https://github.com/"), "/")
	parts := strings.Split(trimmed, "/")
	name := trimmed
	if len(parts) == 2 {
		name = parts[1]
	}
	return map[string]any{
		"suggested_id":      name,
		"suggested_name":    name,
		"suggested_package": trimmed,
		"source_url":        url,
	}
}
