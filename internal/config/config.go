// Package config resolves the orchestrator's on-disk app directory and
// loads/saves its top-level settings file. Per-server configuration
// (commands, env defaults, tools) lives in the Catalog Store; this
// package only covers process-wide settings that exist before the store
// is even opened.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	envAppDir = "MCPCTL_CONFIG_DIR"
	appDirName = "mcpctl-orchestrator"

	settingsFile = "settings.yaml"
	catalogFile  = "catalog.db"
)

// Settings is the orchestrator's process-wide configuration, persisted
// as YAML.
type Settings struct {
	ControlPlaneAddr string `yaml:"control_plane_addr"`
	RegistryURL      string `yaml:"registry_url"`
	ToolPrefix       string `yaml:"tool_prefix"`
	VerboseLogging   bool   `yaml:"verbose_logging"`
}

// DefaultSettings returns the settings a fresh install starts with, so
// callers never need to remember which fields need non-zero defaults.
func DefaultSettings() Settings {
	return Settings{
		ControlPlaneAddr: "127.0.0.1:3000",
		RegistryURL:      "https://registry.mcpctl.dev/catalog.json",
		ToolPrefix:       "",
		VerboseLogging:   false,
	}
}

// ResolveAppDir returns the directory the orchestrator stores its catalog
// database, settings file, and logs in. MCPCTL_CONFIG_DIR overrides the
// OS-default config directory.
func ResolveAppDir() (string, error) {
	if dir := os.Getenv(envAppDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, appDirName), nil
}

// Store loads and saves Settings at a fixed path within an app directory.
type Store struct {
	path string
}

// NewStore builds a Store rooted at appDir.
func NewStore(appDir string) *Store {
	return &Store{path: filepath.Join(appDir, settingsFile)}
}

// CatalogPath returns the sqlite database path alongside the settings
// file within the same app directory.
func (s *Store) CatalogPath() string {
	return filepath.Join(filepath.Dir(s.path), catalogFile)
}

// Load reads settings from disk, returning DefaultSettings if the file
// does not yet exist.
func (s *Store) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	return settings, nil
}

// Save writes settings to disk, creating the app directory if needed.
func (s *Store) Save(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating app dir: %w", err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}
