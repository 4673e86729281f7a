// Package supervisor is the Server Supervisor (spec §4.5): it owns the
// table of live backend clients, drives the spawn/handshake/discovery
// pipeline, and runs the background health loop that restarts servers
// whose live client has gone missing.
//
// Each backend's stdio is inherently single-threaded, so RPC calls into
// one server serialize on that server's own liveClient mutex; calls
// against different servers never block each other. This is the
// per-server-id concurrency model the design notes call for, built with
// a mutex-per-entry rather than a literal actor/message-passing runtime —
// the same serialization guarantee, in a more idiomatic Go shape.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/discoverycache"
	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
	"github.com/mcpctl/orchestrator/internal/stdiorpc"
)

const (
	initializeTimeout = 10 * time.Second
	executeTimeout    = 30 * time.Second

	healthTick    = 30 * time.Second
	backoffBase   = 30 * time.Second
	backoffCap    = 60 * time.Second
)

const clientName = "mcpctl-orchestrator"
const clientVersion = "0.1.0"

// liveClient is the orchestrator's in-memory handle to one running
// backend: its transport, process handle, and lifecycle status. Killing
// it releases everything it owns.
type liveClient struct {
	mu        sync.Mutex
	transport *stdiorpc.Transport
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	status    catalog.ServerStatus
}

func (lc *liveClient) kill() {
	killCmd(lc.cmd)
	if lc.cancel != nil {
		lc.cancel()
	}
}

// Supervisor owns the client table. Table membership is guarded by mu;
// each liveClient serializes its own RPC traffic independently.
type Supervisor struct {
	store     *catalog.Store
	discovery *discoverycache.Cache

	mu      sync.RWMutex
	clients map[string]*liveClient

	restartMu    sync.Mutex
	restartLocks map[string]*sync.Mutex

	backoffMu    sync.Mutex
	nextAttempt  map[string]time.Time
	backoffDelay map[string]time.Duration

	stopHealth chan struct{}
}

// New builds a Supervisor bound to store and discovery.
func New(store *catalog.Store, discovery *discoverycache.Cache) *Supervisor {
	return &Supervisor{
		store:        store,
		discovery:    discovery,
		clients:      make(map[string]*liveClient),
		restartLocks: make(map[string]*sync.Mutex),
		nextAttempt:  make(map[string]time.Time),
		backoffDelay: make(map[string]time.Duration),
	}
}

// restartLock returns the mutex that serializes every kill→spawn→register
// sequence for one server id, creating it on first use. RestartServer
// holds it for its whole duration — including the inner KillProcess call
// — so two concurrent restarts of the same id observe total order:
// exactly one liveClient (and one subprocess) survives, never an
// orphaned loser overwritten in the client table.
func (s *Supervisor) restartLock(id string) *sync.Mutex {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()
	l, ok := s.restartLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.restartLocks[id] = l
	}
	return l
}

// RestartServer runs the full spawn pipeline for id: kill any existing
// live client, build the launch descriptor, spawn the subprocess,
// perform the MCP initialize handshake, insert the new live client, and
// run tool discovery. Any failure past launch-descriptor construction
// kills the partially started subprocess and leaves the table untouched
// — the persisted definition is never rolled back.
func (s *Supervisor) RestartServer(ctx context.Context, id string) error {
	lock := s.restartLock(id)
	lock.Lock()
	defer lock.Unlock()

	def, err := s.store.GetServer(id)
	if err != nil {
		return err
	}
	if !def.Enabled {
		return nil
	}

	s.KillProcess(id) // idempotent

	args, childEnv := buildLaunchArgs(def)

	var cmd *exec.Cmd
	var stdin io.WriteCloser
	var stdout, stderr io.ReadCloser
	var cancel context.CancelFunc

	if def.ToolsType == catalog.ToolsTypeWasm {
		stdin, stdout, stderr, cancel, err = spawnWasm(def.EntryPoint, childEnv)
	} else {
		cmd, stdin, stdout, stderr, cancel, err = spawn(def.Configuration.Command, args, childEnv)
	}
	if err != nil {
		return orcherr.Wrap(orcherr.SpawnFailed, err, "spawning server %s", id)
	}

	transport := stdiorpc.New(id, stdin, stdout)
	stdiorpc.DrainStderr(id, stderr)

	if err := handshake(ctx, transport); err != nil {
		killCmd(cmd)
		cancel()
		return orcherr.Wrap(orcherr.SpawnFailed, err, "initialize handshake with %s", id)
	}

	lc := &liveClient{transport: transport, cmd: cmd, cancel: cancel, status: catalog.StatusRunning}
	s.mu.Lock()
	s.clients[id] = lc
	s.mu.Unlock()

	tools, status := discoverycache.Discover(ctx, transport, id, def.Name, def.Description)
	for _, tool := range tools {
		if err := s.store.SaveServerTool(tool); err != nil {
			logger.AddLog("ERROR", fmt.Sprintf("[%s] saving discovered tool %s: %v", id, tool.ID, err))
		}
	}
	s.discovery.Set(id, tools)
	if status == discoverycache.StatusFailed {
		logger.AddLog("ERROR", fmt.Sprintf("[%s] tool discovery failed, placeholder tool installed", id))
	}

	s.clearBackoff(id)
	return nil
}

func handshake(ctx context.Context, t *stdiorpc.Transport) error {
	params, err := json.Marshal(mcprotocol.InitializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]any{},
		ClientInfo:      mcprotocol.ClientInfo{Name: clientName, Version: clientVersion},
	})
	if err != nil {
		return err
	}
	if _, err := t.RPCCall(ctx, "initialize", params, initializeTimeout); err != nil {
		return err
	}
	return t.InitializedNotification()
}

// KillProcess removes id's live client (if any), terminates the
// subprocess, and clears its cached tools. It never fails loudly on
// "already gone".
func (s *Supervisor) KillProcess(id string) error {
	s.mu.Lock()
	lc, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	lc.mu.Lock()
	lc.kill()
	lc.status = catalog.StatusStopped
	lc.mu.Unlock()

	if err := s.store.DeleteServerTools(id); err != nil {
		logger.AddLog("ERROR", fmt.Sprintf("[%s] clearing cached tools: %v", id, err))
	}
	s.discovery.Remove(id)
	return nil
}

func killCmd(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	cmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		cmd.Process.Kill()
		<-done
	}
}

// CallTool serializes a tools/call against server id's live client. It
// fails with NotFound if the server has no live client.
func (s *Supervisor) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (json.RawMessage, error) {
	s.mu.RLock()
	lc, ok := s.clients[serverID]
	s.mu.RUnlock()
	if !ok {
		return nil, orcherr.New(orcherr.NotFound, fmt.Sprintf("server %q has no live client", serverID))
	}

	params, err := json.Marshal(mcprotocol.ToolCallParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil, orcherr.Wrap(orcherr.ProtocolError, err, "marshaling tools/call params")
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.transport.RPCCall(ctx, "tools/call", params, executeTimeout)
}

// Status returns a server's current live status, StatusStopped if there
// is no live client.
func (s *Supervisor) Status(serverID string) catalog.ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lc, ok := s.clients[serverID]; ok {
		return lc.status
	}
	return catalog.StatusStopped
}

// ListRuntimeServers joins every persisted definition with its live
// status and cached tool count.
func (s *Supervisor) ListRuntimeServers() ([]catalog.RuntimeServer, error) {
	defs, err := s.store.GetAllServers()
	if err != nil {
		return nil, err
	}
	out := make([]catalog.RuntimeServer, 0, len(defs))
	for _, def := range defs {
		out = append(out, catalog.RuntimeServer{
			ServerDefinition: def,
			Status:           s.Status(def.ID),
			ToolCount:        len(s.discovery.Get(def.ID)),
		})
	}
	return out, nil
}

// Shutdown kills every live client, collecting (not short-circuiting on)
// individual failures.
func (s *Supervisor) Shutdown() error {
	if s.stopHealth != nil {
		close(s.stopHealth)
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.KillProcess(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// StartHealthLoop launches the background ticker that restarts enabled
// servers whose live client has gone missing, backing off exponentially
// per server id up to backoffCap when restarts keep failing.
func (s *Supervisor) StartHealthLoop(ctx context.Context) {
	s.stopHealth = make(chan struct{})
	go func() {
		ticker := time.NewTicker(healthTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.healthTick(ctx)
			case <-s.stopHealth:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Supervisor) healthTick(ctx context.Context) {
	defs, err := s.store.GetAllServers()
	if err != nil {
		logger.AddLog("ERROR", fmt.Sprintf("health loop: listing servers: %v", err))
		return
	}

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		s.mu.RLock()
		_, live := s.clients[def.ID]
		s.mu.RUnlock()
		if live {
			continue
		}
		if !s.backoffReady(def.ID) {
			continue
		}
		if err := s.RestartServer(ctx, def.ID); err != nil {
			logger.AddLog("ERROR", fmt.Sprintf("health loop: restarting %s: %v", def.ID, err))
			s.bumpBackoff(def.ID)
		}
	}
}

func (s *Supervisor) backoffReady(id string) bool {
	s.backoffMu.Lock()
	defer s.backoffMu.Unlock()
	next, ok := s.nextAttempt[id]
	return !ok || !time.Now().Before(next)
}

func (s *Supervisor) bumpBackoff(id string) {
	s.backoffMu.Lock()
	defer s.backoffMu.Unlock()
	delay := s.backoffDelay[id]
	if delay == 0 {
		delay = backoffBase
	} else {
		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}
	s.backoffDelay[id] = delay
	s.nextAttempt[id] = time.Now().Add(delay)
}

func (s *Supervisor) clearBackoff(id string) {
	s.backoffMu.Lock()
	defer s.backoffMu.Unlock()
	delete(s.backoffDelay, id)
	delete(s.nextAttempt, id)
}

// buildLaunchArgs substitutes $NAME placeholders in the configured args
// from the definition's env-var defaults, removing any substituted key
// from the map passed on to the child process.
func buildLaunchArgs(def catalog.ServerDefinition) (args []string, childEnv map[string]string) {
	defaults := make(map[string]string, len(def.Configuration.Env))
	for k, ev := range def.Configuration.Env {
		defaults[k] = ev.Default
	}

	used := make(map[string]bool)
	args = make([]string, len(def.Configuration.Args))
	for i, a := range def.Configuration.Args {
		if strings.HasPrefix(a, "$") {
			name := strings.TrimPrefix(a, "$")
			if v, ok := defaults[name]; ok {
				args[i] = v
				used[name] = true
				continue
			}
		}
		args[i] = a
	}

	childEnv = make(map[string]string, len(defaults))
	for k, v := range defaults {
		if !used[k] {
			childEnv[k] = v
		}
	}
	return args, childEnv
}

// spawn builds the platform-appropriate command, wires piped
// stdin/stdout/stderr, merges env over the current process environment,
// and starts the subprocess. The child's lifetime is governed by its own
// cancelable context, independent of the context a caller used to
// request the restart, so an RPC-scoped timeout never reaches in and
// kills a long-running backend.
func spawn(command string, args []string, env map[string]string) (cmd *exec.Cmd, stdin io.WriteCloser, stdout io.ReadCloser, stderr io.ReadCloser, cancel context.CancelFunc, err error) {
	processCtx, cancel := context.WithCancel(context.Background())

	cmd = buildCmd(processCtx, command, args)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if stdin, err = cmd.StdinPipe(); err != nil {
		cancel()
		return nil, nil, nil, nil, nil, err
	}
	if stdout, err = cmd.StdoutPipe(); err != nil {
		cancel()
		return nil, nil, nil, nil, nil, err
	}
	if stderr, err = cmd.StderrPipe(); err != nil {
		cancel()
		return nil, nil, nil, nil, nil, err
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return nil, nil, nil, nil, nil, err
	}

	return cmd, stdin, stdout, stderr, cancel, nil
}
