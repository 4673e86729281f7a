// Package proxyrouter is the Proxy Router (spec §4.7): it answers
// tools/list with the union of built-in meta-tools and the Discovery
// Cache's backend tools, and dispatches tools/call either to a built-in
// handler or, for everything else, to the Supervisor after resolving the
// owning server from the Discovery Cache.
package proxyrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/discoverycache"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
	"github.com/mcpctl/orchestrator/internal/registryclient"
	"github.com/mcpctl/orchestrator/internal/searchindex"
	"github.com/mcpctl/orchestrator/internal/supervisor"
)

const searchResultLimit = 10

// ToolDescriptor is the tools/list shape returned over MCP: a flat name,
// description, and JSON Schema, regardless of whether the tool is a
// built-in meta-tool or a cached backend tool.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema *mcprotocol.JSONSchema `json:"inputSchema,omitempty"`
}

// Router ties the registry, search index, catalog, discovery cache, and
// supervisor together behind a single tools/list + tools/call surface.
type Router struct {
	store     *catalog.Store
	sup       *supervisor.Supervisor
	discovery *discoverycache.Cache
	registry  *registryclient.Client
	index     *searchindex.Index
	prefix    string
}

// New builds a Router. prefix is prepended to every built-in meta-tool
// name (e.g. "mcpctl_" -> "mcpctl_register_server"); an empty prefix
// leaves names unprefixed.
func New(store *catalog.Store, sup *supervisor.Supervisor, discovery *discoverycache.Cache, registry *registryclient.Client, prefix string) *Router {
	return &Router{
		store:     store,
		sup:       sup,
		discovery: discovery,
		registry:  registry,
		index:     searchindex.New(nil),
		prefix:    prefix,
	}
}

func (r *Router) builtinName(name string) string {
	return r.prefix + name
}

// ListTools returns the built-ins (always present) followed by every
// cached backend tool, unless the tools-hidden setting suppresses them.
func (r *Router) ListTools() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(builtinDefs()))
	for _, b := range builtinDefs() {
		out = append(out, ToolDescriptor{Name: r.builtinName(b.name), Description: b.description, InputSchema: b.schema})
	}
	for _, t := range r.discovery.ListAll() {
		out = append(out, ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// CallTool dispatches name either to a built-in handler or, after
// resolving the owning server by id-then-name across the catalog's
// insertion order, to the Supervisor. The result is always wrapped into
// an MCP CallToolResult.
func (r *Router) CallTool(ctx context.Context, name string, args map[string]any) (*mcprotocol.CallToolResult, error) {
	result, err := r.resolveAndCall(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return mcprotocol.TextResult(result)
}

// resolveAndCall is CallTool without the MCP content-array wrapping, so
// run_script's callTool bridge can hand plain values back into JS instead
// of a JSON-encoded CallToolResult.
func (r *Router) resolveAndCall(ctx context.Context, name string, args map[string]any) (any, error) {
	if builtin, ok := r.matchBuiltin(name); ok {
		return r.dispatchBuiltin(ctx, builtin, args)
	}

	serverOrder, err := r.serverOrder()
	if err != nil {
		return nil, err
	}

	tool, ok := r.discovery.FindByIDOrName(name, serverOrder)
	if !ok {
		return nil, orcherr.New(orcherr.NotFound, fmt.Sprintf("no tool matches %q", name))
	}

	raw, err := r.sup.CallTool(ctx, tool.ServerID, tool.Name, args)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}
	return decoded, nil
}

func (r *Router) matchBuiltin(name string) (string, bool) {
	if r.prefix != "" && !strings.HasPrefix(name, r.prefix) {
		return "", false
	}
	unprefixed := strings.TrimPrefix(name, r.prefix)
	for _, b := range builtinDefs() {
		if b.name == unprefixed {
			return b.name, true
		}
	}
	return "", false
}

func (r *Router) serverOrder() ([]string, error) {
	defs, err := r.store.GetAllServers()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (r *Router) dispatchBuiltin(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "register_server":
		return r.registerServer(ctx, args)
	case "search_server":
		return r.searchServer(ctx, args)
	case "configure_server":
		return r.configureServer(ctx, args)
	case "uninstall_server":
		return r.uninstallServer(args)
	case "list_installed_servers":
		return r.listInstalledServers()
	case "run_script":
		return r.runScript(ctx, args)
	default:
		return nil, orcherr.New(orcherr.NotFound, fmt.Sprintf("unknown built-in tool %q", name))
	}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

func (r *Router) registerServer(ctx context.Context, args map[string]any) (any, error) {
	toolID, ok := stringArg(args, "tool_id")
	if !ok {
		return nil, orcherr.New(orcherr.InvalidConfiguration, "tool_id is required")
	}

	tool, err := r.registry.GetToolByID(ctx, toolID)
	if err != nil {
		return nil, err
	}

	def := catalog.ServerDefinition{
		ID:          tool.ID,
		Name:        tool.Name,
		Description: tool.Description,
		ToolsType:   catalog.ToolsType(tool.Runtime),
		Enabled:     true,
		ServerType:  catalog.ServerKindPackage,
		Configuration: catalog.Configuration{
			Command: tool.Config.Command,
			Args:    tool.Config.Args,
			Env:     tool.Config.Env,
		},
		Distribution: &tool.Distribution,
	}

	if err := r.store.SaveServer(def); err != nil {
		return nil, err
	}
	if err := r.sup.RestartServer(ctx, def.ID); err != nil {
		return nil, err
	}

	return map[string]any{"status": "registered", "server_id": def.ID}, nil
}

func (r *Router) searchServer(ctx context.Context, args map[string]any) (any, error) {
	query, ok := stringArg(args, "query")
	if !ok {
		return nil, orcherr.New(orcherr.InvalidConfiguration, "query is required")
	}

	reg, err := r.registry.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	r.index.Rebuild(reg.Tools)

	results, err := r.index.Search(query)
	if err != nil {
		return nil, err
	}
	if len(results) > searchResultLimit {
		results = results[:searchResultLimit]
	}
	return results, nil
}

func (r *Router) configureServer(ctx context.Context, args map[string]any) (any, error) {
	serverID, ok := stringArg(args, "server_id")
	if !ok {
		return nil, orcherr.New(orcherr.InvalidConfiguration, "server_id is required")
	}
	envArg, ok := args["env"].(map[string]any)
	if !ok {
		return nil, orcherr.New(orcherr.InvalidConfiguration, "env is required")
	}

	def, err := r.store.GetServer(serverID)
	if err != nil {
		return nil, err
	}
	if def.Configuration.Env == nil {
		def.Configuration.Env = make(map[string]catalog.EnvVar)
	}
	for k, v := range envArg {
		str, _ := v.(string)
		existing := def.Configuration.Env[k]
		existing.Default = str
		def.Configuration.Env[k] = existing
	}

	if err := r.store.SaveServer(def); err != nil {
		return nil, err
	}
	if err := r.sup.RestartServer(ctx, serverID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "configured", "server_id": serverID}, nil
}

func (r *Router) uninstallServer(args map[string]any) (any, error) {
	serverID, ok := stringArg(args, "server_id")
	if !ok {
		return nil, orcherr.New(orcherr.InvalidConfiguration, "server_id is required")
	}
	if err := r.sup.KillProcess(serverID); err != nil {
		return nil, err
	}
	if err := r.store.DeleteServer(serverID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "uninstalled", "server_id": serverID}, nil
}

func (r *Router) listInstalledServers() (any, error) {
	servers, err := r.sup.ListRuntimeServers()
	if err != nil {
		return nil, err
	}
	return servers, nil
}
