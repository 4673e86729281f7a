// Package registryclient fetches the remote tool catalog over HTTPS and
// caches it in memory, coalescing concurrent refreshes behind a
// single-flight group.
package registryclient

import "github.com/mcpctl/orchestrator/internal/catalog"

// Publisher identifies who maintains a registry entry.
type Publisher struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// RegistryTool is one entry in the remote catalog. It is read-only within
// the orchestrator; installing one copies its fields into a
// catalog.ServerDefinition.
type RegistryTool struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Runtime      string               `json:"runtime"`
	Distribution catalog.Distribution `json:"distribution"`
	Config       RegistryConfig       `json:"config"`
	Categories   []string             `json:"categories,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
	Publisher    Publisher            `json:"publisher"`
	IsOfficial   bool                 `json:"is_official"`
}

// RegistryConfig mirrors catalog.Configuration's shape as published by the
// remote catalog.
type RegistryConfig struct {
	Command string                       `json:"command"`
	Args    []string                     `json:"args"`
	Env     map[string]catalog.EnvVar    `json:"env,omitempty"`
}

// Catalog is the top-level document fetched from the registry URL.
type Catalog struct {
	Tools []RegistryTool `json:"tools"`
}
