package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
)

// Store is the Catalog Store component: durable, transactional storage of
// server definitions, per-server env vars, discovered tools and settings.
// Callers serialize their own writes; Store does not take an external
// lock, relying instead on SQLite's own write-lock plus WAL readers.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory for path if missing, opens the
// database with WAL journaling, foreign keys and a busy timeout, caps the
// connection pool at 5, and applies every pending migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, orcherr.Wrap(orcherr.RepositoryError, err, "creating catalog directory %s", dir)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "opening catalog database")
	}
	db.SetMaxOpenConns(5)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "applying migrations")
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory catalog, primarily for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "opening in-memory catalog")
	}
	db.SetMaxOpenConns(1) // a shared in-memory db needs a single connection to survive across calls
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "applying migrations")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveServer upserts a server definition and transactionally replaces its
// env rows.
func (s *Store) SaveServer(def ServerDefinition) error {
	argsJSON, err := json.Marshal(def.Configuration.Args)
	if err != nil {
		return orcherr.Wrap(orcherr.InvalidConfiguration, err, "marshaling args for %s", def.ID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "beginning save_server tx")
	}
	defer tx.Rollback()

	var distType, distPkg sql.NullString
	if def.Distribution != nil {
		distType = sql.NullString{String: def.Distribution.Type, Valid: true}
		distPkg = sql.NullString{String: def.Distribution.Package, Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO servers (id, name, description, tools_type, enabled, entry_point, command, args_json,
		                      distribution_type, distribution_pkg, server_type, working_directory, executable_path)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description, tools_type=excluded.tools_type,
			enabled=excluded.enabled, entry_point=excluded.entry_point, command=excluded.command,
			args_json=excluded.args_json, distribution_type=excluded.distribution_type,
			distribution_pkg=excluded.distribution_pkg, server_type=excluded.server_type,
			working_directory=excluded.working_directory, executable_path=excluded.executable_path
	`, def.ID, def.Name, def.Description, string(def.ToolsType), def.Enabled, def.EntryPoint,
		def.Configuration.Command, string(argsJSON), distType, distPkg, string(def.ServerType),
		def.WorkingDirectory, def.ExecutablePath)
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "upserting server %s", def.ID)
	}

	if _, err := tx.Exec(`DELETE FROM server_env WHERE server_id = ?`, def.ID); err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "clearing env for %s", def.ID)
	}
	for key, ev := range def.Configuration.Env {
		if _, err := tx.Exec(`INSERT INTO server_env (server_id, key, description, default_value, required) VALUES (?,?,?,?,?)`,
			def.ID, key, ev.Description, ev.Default, ev.Required); err != nil {
			return orcherr.Wrap(orcherr.RepositoryError, err, "inserting env %s for %s", key, def.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "committing save_server for %s", def.ID)
	}
	return nil
}

// GetServer fetches one server definition including its env map.
func (s *Store) GetServer(id string) (ServerDefinition, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, tools_type, enabled, entry_point, command, args_json,
		       distribution_type, distribution_pkg, server_type, working_directory, executable_path
		FROM servers WHERE id = ?`, id)

	def, err := scanServer(row)
	if err == sql.ErrNoRows {
		return ServerDefinition{}, orcherr.New(orcherr.NotFound, fmt.Sprintf("server %q not found", id))
	}
	if err != nil {
		return ServerDefinition{}, orcherr.Wrap(orcherr.RepositoryError, err, "reading server %s", id)
	}

	env, err := s.loadEnv(id)
	if err != nil {
		return ServerDefinition{}, err
	}
	def.Configuration.Env = env
	return def, nil
}

// GetAllServers returns every server definition in insertion (rowid)
// order.
func (s *Store) GetAllServers() ([]ServerDefinition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, tools_type, enabled, entry_point, command, args_json,
		       distribution_type, distribution_pkg, server_type, working_directory, executable_path
		FROM servers ORDER BY rowid`)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "listing servers")
	}
	defer rows.Close()

	var out []ServerDefinition
	for rows.Next() {
		def, err := scanServer(rows)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.RepositoryError, err, "scanning server row")
		}
		env, err := s.loadEnv(def.ID)
		if err != nil {
			return nil, err
		}
		def.Configuration.Env = env
		out = append(out, def)
	}
	return out, rows.Err()
}

// DeleteServer removes a server; server_env and server_tools cascade via
// the foreign key.
func (s *Store) DeleteServer(id string) error {
	res, err := s.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "deleting server %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return orcherr.New(orcherr.NotFound, fmt.Sprintf("server %q not found", id))
	}
	return nil
}

func (s *Store) loadEnv(serverID string) (map[string]EnvVar, error) {
	rows, err := s.db.Query(`SELECT key, description, default_value, required FROM server_env WHERE server_id = ?`, serverID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "loading env for %s", serverID)
	}
	defer rows.Close()

	env := make(map[string]EnvVar)
	for rows.Next() {
		var key string
		var ev EnvVar
		if err := rows.Scan(&key, &ev.Description, &ev.Default, &ev.Required); err != nil {
			return nil, orcherr.Wrap(orcherr.RepositoryError, err, "scanning env row for %s", serverID)
		}
		env[key] = ev
	}
	return env, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (ServerDefinition, error) {
	var def ServerDefinition
	var toolsType, serverType string
	var argsJSON string
	var distType, distPkg sql.NullString

	err := row.Scan(&def.ID, &def.Name, &def.Description, &toolsType, &def.Enabled, &def.EntryPoint,
		&def.Configuration.Command, &argsJSON, &distType, &distPkg, &serverType,
		&def.WorkingDirectory, &def.ExecutablePath)
	if err != nil {
		return ServerDefinition{}, err
	}

	def.ToolsType = ToolsType(toolsType)
	def.ServerType = ServerKind(serverType)
	if err := json.Unmarshal([]byte(argsJSON), &def.Configuration.Args); err != nil {
		return ServerDefinition{}, fmt.Errorf("parsing args_json: %w", err)
	}
	if distType.Valid {
		def.Distribution = &Distribution{Type: distType.String, Package: distPkg.String}
	}
	return def, nil
}

// SaveServerTool upserts one discovered tool.
func (s *Store) SaveServerTool(t ServerToolInfo) error {
	var schemaJSON sql.NullString
	if t.InputSchema != nil {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return orcherr.Wrap(orcherr.RepositoryError, err, "marshaling input_schema for %s/%s", t.ServerID, t.ID)
		}
		schemaJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO server_tools (server_id, tool_id, name, description, input_schema)
		VALUES (?,?,?,?,?)
		ON CONFLICT(server_id, tool_id) DO UPDATE SET
			name=excluded.name, description=excluded.description, input_schema=excluded.input_schema
	`, t.ServerID, t.ID, t.Name, t.Description, schemaJSON)
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "saving tool %s/%s", t.ServerID, t.ID)
	}
	return nil
}

// GetServerTools returns every tool cached for serverID, in insertion
// order.
func (s *Store) GetServerTools(serverID string) ([]ServerToolInfo, error) {
	rows, err := s.db.Query(`SELECT server_id, tool_id, name, description, input_schema FROM server_tools WHERE server_id = ? ORDER BY rowid`, serverID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RepositoryError, err, "listing tools for %s", serverID)
	}
	defer rows.Close()

	var out []ServerToolInfo
	for rows.Next() {
		var t ServerToolInfo
		var schemaJSON sql.NullString
		if err := rows.Scan(&t.ServerID, &t.ID, &t.Name, &t.Description, &schemaJSON); err != nil {
			return nil, orcherr.Wrap(orcherr.RepositoryError, err, "scanning tool row for %s", serverID)
		}
		if schemaJSON.Valid {
			var schema mcprotocol.JSONSchema
			if err := json.Unmarshal([]byte(schemaJSON.String), &schema); err != nil {
				return nil, orcherr.Wrap(orcherr.ProtocolError, err, "parsing input_schema for %s/%s", t.ServerID, t.ID)
			}
			t.InputSchema = &schema
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteServerTool removes one tool row.
func (s *Store) DeleteServerTool(id, serverID string) error {
	_, err := s.db.Exec(`DELETE FROM server_tools WHERE server_id = ? AND tool_id = ?`, serverID, id)
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "deleting tool %s/%s", serverID, id)
	}
	return nil
}

// DeleteServerTools removes every tool cached for serverID, used when a
// server is killed or uninstalled and discovery must start clean.
func (s *Store) DeleteServerTools(serverID string) error {
	_, err := s.db.Exec(`DELETE FROM server_tools WHERE server_id = ?`, serverID)
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "clearing tools for %s", serverID)
	}
	return nil
}

// GetSetting returns a setting's value, or NotFound if absent.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", orcherr.New(orcherr.NotFound, fmt.Sprintf("setting %q not found", key))
	}
	if err != nil {
		return "", orcherr.Wrap(orcherr.RepositoryError, err, "reading setting %s", key)
	}
	return value, nil
}

// SaveSetting upserts a setting.
func (s *Store) SaveSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "saving setting %s", key)
	}
	return nil
}

// ClearAll wipes every table; used by the "clear" dev/CLI command.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "beginning clear_all tx")
	}
	defer tx.Rollback()

	for _, table := range []string{"server_tools", "server_env", "servers", "settings"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return orcherr.Wrap(orcherr.RepositoryError, err, "clearing table %s", table)
		}
	}
	if err := tx.Commit(); err != nil {
		return orcherr.Wrap(orcherr.RepositoryError, err, "committing clear_all")
	}
	return nil
}
