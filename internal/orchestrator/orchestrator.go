// Package orchestrator is the root wiring for the orchestrator process
// (spec §4.9): it opens the catalog, restores the tools-hidden setting,
// brings up every enabled server with bounded parallelism, starts the
// supervisor's health loop and the control plane's HTTP server, and
// tears everything down on signal.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/config"
	"github.com/mcpctl/orchestrator/internal/controlplane"
	"github.com/mcpctl/orchestrator/internal/discoverycache"
	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/proxyrouter"
	"github.com/mcpctl/orchestrator/internal/registryclient"
	"github.com/mcpctl/orchestrator/internal/supervisor"
)

// startupConcurrency bounds how many servers restart at once during
// bring-up, trading startup latency against a thundering herd of
// subprocess spawns on machines with many registered servers.
const startupConcurrency = 4

// shutdownTimeout bounds how long graceful shutdown waits for the
// control plane's in-flight requests before giving up.
const shutdownTimeout = 5 * time.Second

// Orchestrator owns every long-lived component wired together at
// startup and is the single thing main() needs to Run and Shutdown.
type Orchestrator struct {
	store     *catalog.Store
	sup       *supervisor.Supervisor
	discovery *discoverycache.Cache
	registry  *registryclient.Client
	router    *proxyrouter.Router
	server    *http.Server
	settings  config.Settings
}

// New opens the catalog at cfg's resolved path, restores persisted
// settings, and wires the supervisor, discovery cache, registry client,
// proxy router and control plane together. It does not yet start any
// servers or listeners; call Run for that.
func New(appDir string) (*Orchestrator, error) {
	cfgStore := config.NewStore(appDir)
	settings, err := cfgStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if err := logger.Init(appDir); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	store, err := catalog.Open(cfgStore.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	discovery := discoverycache.NewCache()
	hidden, _ := store.GetSetting(catalog.SettingToolsHidden)
	discovery.SetToolsHidden(hidden == "true")

	sup := supervisor.New(store, discovery)
	registry := registryclient.New(settings.RegistryURL, http.DefaultClient)
	router := proxyrouter.New(store, sup, discovery, registry, settings.ToolPrefix)
	cp := controlplane.New(store, sup, discovery, registry, router)

	addr := settings.ControlPlaneAddr
	if addr == "" {
		addr = controlplane.DefaultAddr
	}

	return &Orchestrator{
		store:     store,
		sup:       sup,
		discovery: discovery,
		registry:  registry,
		router:    router,
		server:    &http.Server{Addr: addr, Handler: cp},
		settings:  settings,
	}, nil
}

// Run restarts every enabled server with bounded parallelism, starts the
// supervisor's health loop, and serves the control plane until ctx is
// canceled, at which point it shuts both down gracefully.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startEnabledServers(ctx)
	o.sup.StartHealthLoop(ctx)

	serveErr := make(chan error, 1)
	go func() {
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()
	logger.AddLog("INFO", fmt.Sprintf("control plane listening on %s", o.server.Addr))

	select {
	case <-ctx.Done():
		return o.Shutdown()
	case err := <-serveErr:
		return err
	}
}

// startEnabledServers restarts every enabled, persisted server
// definition with at most startupConcurrency in flight at once.
func (o *Orchestrator) startEnabledServers(ctx context.Context) {
	defs, err := o.store.GetAllServers()
	if err != nil {
		logger.AddLog("ERROR", fmt.Sprintf("listing servers at startup: %v", err))
		return
	}

	sem := make(chan struct{}, startupConcurrency)
	var wg sync.WaitGroup
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		def := def
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := o.sup.RestartServer(ctx, def.ID); err != nil {
				logger.AddLog("ERROR", fmt.Sprintf("starting %s: %v", def.ID, err))
			}
		}()
	}
	wg.Wait()
}

// Shutdown stops the control plane's listener and kills every live
// subprocess, bounded by shutdownTimeout.
func (o *Orchestrator) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := o.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("control plane shutdown: %w", err))
	}
	if err := o.sup.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("supervisor shutdown: %w", err))
	}
	if err := o.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing catalog: %w", err))
	}
	logger.Close()

	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %w", joined, e)
	}
	return joined
}
