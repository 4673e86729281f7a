package proxyrouter

import "github.com/mcpctl/orchestrator/internal/mcprotocol"

func objectSchema(props map[string]*mcprotocol.JSONSchema, required ...string) *mcprotocol.JSONSchema {
	return &mcprotocol.JSONSchema{
		Type:       mcprotocol.NewSchemaTypeString("object"),
		Properties: props,
		Required:   required,
	}
}

func stringProp(desc string) *mcprotocol.JSONSchema {
	return &mcprotocol.JSONSchema{Type: mcprotocol.NewSchemaTypeString("string"), Description: desc}
}

func objectProp(desc string) *mcprotocol.JSONSchema {
	return &mcprotocol.JSONSchema{Type: mcprotocol.NewSchemaTypeString("object"), Description: desc}
}

// builtinDef pairs a meta-tool's unprefixed name with its description and
// input schema. The router applies the configured prefix when it answers
// tools/list and when it matches an incoming tools/call.
type builtinDef struct {
	name        string
	description string
	schema      *mcprotocol.JSONSchema
}

// builtinDefs returns the six meta-tools always available through the
// router: the five from the registry/catalog/supervisor surface, plus the
// sandboxed scripting tool that composes other tool calls.
func builtinDefs() []builtinDef {
	return []builtinDef{
		{
			name:        "register_server",
			description: "Installs a registry tool by id and starts it.",
			schema:      objectSchema(map[string]*mcprotocol.JSONSchema{"tool_id": stringProp("Registry tool id to install.")}, "tool_id"),
		},
		{
			name:        "search_server",
			description: "Searches the remote registry catalog for tools matching a query.",
			schema:      objectSchema(map[string]*mcprotocol.JSONSchema{"query": stringProp("Free-text search query.")}, "query"),
		},
		{
			name:        "configure_server",
			description: "Updates a server's environment variable defaults and restarts it.",
			schema: objectSchema(map[string]*mcprotocol.JSONSchema{
				"server_id": stringProp("Id of the server to configure."),
				"env":       objectProp("Map of environment variable name to new default value."),
			}, "server_id", "env"),
		},
		{
			name:        "uninstall_server",
			description: "Kills a server and removes its persisted definition and tools.",
			schema:      objectSchema(map[string]*mcprotocol.JSONSchema{"server_id": stringProp("Id of the server to remove.")}, "server_id"),
		},
		{
			name:        "list_installed_servers",
			description: "Lists every installed server with its live status and tool count.",
			schema:      objectSchema(map[string]*mcprotocol.JSONSchema{}),
		},
		{
			name:        "run_script",
			description: "Executes a sandboxed JavaScript snippet that may call other active tools via callTool(name, args).",
			schema: objectSchema(map[string]*mcprotocol.JSONSchema{
				"script":    stringProp("JavaScript source, run as a function body. Its explicit return value is the result."),
				"arguments": objectProp("Optional arguments, available inside the script as the 'args' object."),
			}, "script"),
		},
	}
}
