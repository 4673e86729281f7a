// Package catalog is the durable, transactional store of registered
// servers, their per-server environment variables, discovered tools, and
// key/value settings. It is backed by an embedded SQLite database opened
// through database/sql and the pure-Go modernc.org/sqlite driver — no
// cgo, single file, suited to a single-user desktop install.
package catalog

import "github.com/mcpctl/orchestrator/internal/mcprotocol"

// ToolsType enumerates how a server's process is packaged. "wasm" is an
// orchestrator extension beyond the upstream registry schema: a wasm
// server runs in-process under a wazero runtime instead of os/exec.
type ToolsType string

const (
	ToolsTypeNode   ToolsType = "node"
	ToolsTypePython ToolsType = "python"
	ToolsTypeDocker ToolsType = "docker"
	ToolsTypeCustom ToolsType = "custom"
	ToolsTypeWasm   ToolsType = "wasm"
)

// ServerKind distinguishes how a server definition originated.
type ServerKind string

const (
	ServerKindPackage ServerKind = "package"
	ServerKindLocal   ServerKind = "local"
	ServerKindCustom  ServerKind = "custom"
)

// EnvVar describes one environment variable a server's configuration
// references. Default is taken as the effective value at launch time.
type EnvVar struct {
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required"`
}

// Configuration is the launch descriptor persisted with a server.
type Configuration struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]EnvVar `json:"env"`
}

// Distribution records how a server's package was obtained, when it came
// from a registry-sourced installation rather than a local/custom entry.
type Distribution struct {
	Type    string `json:"type"`
	Package string `json:"package"`
}

// ServerDefinition is the persisted description of one managed server.
type ServerDefinition struct {
	ID          string
	Name        string
	Description string
	ToolsType   ToolsType
	Enabled     bool
	EntryPoint  string

	Configuration Configuration
	Distribution  *Distribution

	ServerType        ServerKind
	WorkingDirectory  string
	ExecutablePath    string
}

// ServerToolInfo is one tool advertised by a server, keyed by
// (ServerID, ID).
type ServerToolInfo struct {
	ServerID    string
	ID          string
	Name        string
	Description string
	InputSchema *mcprotocol.JSONSchema
}

// ServerStatus is the in-memory-only lifecycle state of a server; it is
// never persisted and is derived entirely from the supervisor's live
// client table.
type ServerStatus string

const (
	StatusStopped  ServerStatus = "stopped"
	StatusStarting ServerStatus = "starting"
	StatusRunning  ServerStatus = "running"
	StatusFailed   ServerStatus = "failed"
)

// RuntimeServer is the derived view joining a ServerDefinition with its
// live status and current tool count. Never persisted.
type RuntimeServer struct {
	ServerDefinition
	Status    ServerStatus
	ToolCount int
}

// Well-known setting keys.
const (
	SettingToolsHidden = "tools_hidden"
)
