package supervisor

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/discoverycache"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
	"github.com/mcpctl/orchestrator/internal/stdiorpc"
)

func TestBuildLaunchArgs_SubstitutesAndRemovesFromEnv(t *testing.T) {
	def := catalog.ServerDefinition{
		Configuration: catalog.Configuration{
			Args: []string{"run", "$API_KEY", "--region", "$REGION"},
			Env: map[string]catalog.EnvVar{
				"API_KEY": {Default: "secret123"},
				"REGION":  {Default: "us-east-1"},
				"UNUSED":  {Default: "keep-me"},
			},
		},
	}

	args, env := buildLaunchArgs(def)
	assert.Equal(t, []string{"run", "secret123", "--region", "us-east-1"}, args)
	assert.Equal(t, "keep-me", env["UNUSED"])
	assert.NotContains(t, env, "API_KEY")
	assert.NotContains(t, env, "REGION")
}

func TestBuildLaunchArgs_UnknownPlaceholderPassesThrough(t *testing.T) {
	def := catalog.ServerDefinition{
		Configuration: catalog.Configuration{
			Args: []string{"$NOT_DEFINED"},
		},
	}
	args, _ := buildLaunchArgs(def)
	assert.Equal(t, []string{"$NOT_DEFINED"}, args)
}

func newPipedTransport(serverID string) (*stdiorpc.Transport, *io.PipeReader, *io.PipeWriter) {
	serverStdin, clientStdin := io.Pipe()
	clientStdout, serverStdout := io.Pipe()
	return stdiorpc.New(serverID, clientStdin, clientStdout), serverStdin, serverStdout
}

func TestSupervisor_CallTool_NotFoundWithoutLiveClient(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	s := New(store, discoverycache.NewCache())
	_, err = s.CallTool(context.Background(), "missing", "whatever", nil)
	require.Error(t, err)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))
}

func TestSupervisor_CallTool_RoutesThroughLiveClient(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	s := New(store, discoverycache.NewCache())

	transport, serverStdin, serverStdout := newPipedTransport("weather")
	s.mu.Lock()
	s.clients["weather"] = &liveClient{transport: transport, status: catalog.StatusRunning}
	s.mu.Unlock()

	go func() {
		dec := json.NewDecoder(serverStdin)
		var req mcprotocol.Request
		require.NoError(t, dec.Decode(&req))
		resp := mcprotocol.Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"content":[]}`)}
		b, _ := json.Marshal(resp)
		serverStdout.Write(append(b, '\n'))
	}()

	result, err := s.CallTool(context.Background(), "weather", "get_forecast", map[string]any{"city": "nyc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[]}`, string(result))
}

func TestSupervisor_KillProcess_MissingIsNoop(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	s := New(store, discoverycache.NewCache())
	assert.NoError(t, s.KillProcess("never-existed"))
}

func TestSupervisor_Backoff_DoublesUpToCap(t *testing.T) {
	s := New(nil, nil)

	s.bumpBackoff("srv")
	assert.Equal(t, backoffBase, s.backoffDelay["srv"])

	s.bumpBackoff("srv")
	assert.Equal(t, 2*backoffBase, s.backoffDelay["srv"])

	for i := 0; i < 10; i++ {
		s.bumpBackoff("srv")
	}
	assert.Equal(t, backoffCap, s.backoffDelay["srv"])

	s.clearBackoff("srv")
	assert.NotContains(t, s.backoffDelay, "srv")
}

func TestSupervisor_BackoffReady_TrueBeforeFirstAttempt(t *testing.T) {
	s := New(nil, nil)
	assert.True(t, s.backoffReady("fresh"))
}

func TestSupervisor_RestartServer_DisabledReturnsNilWithoutSpawning(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveServer(catalog.ServerDefinition{
		ID:      "disabled-server",
		Name:    "Disabled",
		Enabled: false,
		Configuration: catalog.Configuration{
			Command: "true",
		},
	}))

	s := New(store, discoverycache.NewCache())
	require.NoError(t, s.RestartServer(context.Background(), "disabled-server"))
	assert.Equal(t, catalog.StatusStopped, s.Status("disabled-server"))
}

func TestSupervisor_RestartServer_MissingDefinitionFails(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	s := New(store, discoverycache.NewCache())
	err = s.RestartServer(context.Background(), "no-such-server")
	require.Error(t, err)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))
}

// TestSupervisor_RestartServer_ConcurrentSameIDLeavesExactlyOneClient fires
// two RestartServer calls for the same id at once. Both race through
// kill→spawn→handshake→discover independently, but the per-id restart lock
// must still force them into total order: whichever finishes second must
// see (and kill) the first's liveClient rather than silently stomp the map
// entry, so exactly one live subprocess is left standing.
func TestSupervisor_RestartServer_ConcurrentSameIDLeavesExactlyOneClient(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveServer(catalog.ServerDefinition{
		ID:      "echo-server",
		Name:    "Echo",
		Enabled: true,
		Configuration: catalog.Configuration{
			Command: "cat", // echoes every request back, enough to pass the degenerate handshake below
		},
	}))

	s := New(store, discoverycache.NewCache())
	defer s.Shutdown()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RestartServer(context.Background(), "echo-server")
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent restarts did not complete — possible deadlock on the per-id restart lock")
	}
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	s.mu.RLock()
	_, ok := s.clients["echo-server"]
	count := len(s.clients)
	s.mu.RUnlock()
	assert.True(t, ok, "exactly one live client should remain registered for echo-server")
	assert.Equal(t, 1, count)
}

func TestSupervisor_ListRuntimeServers_JoinsStatusAndToolCount(t *testing.T) {
	store, err := catalog.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveServer(catalog.ServerDefinition{ID: "weather", Name: "Weather"}))

	cache := discoverycache.NewCache()
	cache.Set("weather", []catalog.ServerToolInfo{{ServerID: "weather", ID: "t1"}})

	s := New(store, cache)
	s.mu.Lock()
	s.clients["weather"] = &liveClient{status: catalog.StatusRunning}
	s.mu.Unlock()

	runtime, err := s.ListRuntimeServers()
	require.NoError(t, err)
	require.Len(t, runtime, 1)
	assert.Equal(t, catalog.StatusRunning, runtime[0].Status)
	assert.Equal(t, 1, runtime[0].ToolCount)
}
