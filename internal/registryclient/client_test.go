package registryclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpctl/orchestrator/internal/orcherr"
)

func newServer(t *testing.T, body string, status int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestClient_GetRegistry_FetchesAndCaches(t *testing.T) {
	var hits int32
	srv := newServer(t, `{"tools":[{"id":"weather","name":"Weather","description":"Current conditions and forecasts","config":{"command":"npx"},"publisher":{"name":"acme"}}]}`, http.StatusOK, &hits)
	defer srv.Close()

	c := New(srv.URL, nil)

	cat, err := c.GetRegistry(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Tools, 1)
	assert.Equal(t, "weather", cat.Tools[0].ID)

	// second call within TTL must not re-hit the server
	_, err = c.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_GetRegistry_ExpiredTTL_Refetches(t *testing.T) {
	var hits int32
	srv := newServer(t, `{"tools":[]}`, http.StatusOK, &hits)
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// force the cached entry to look 10 minutes and 1 second old
	c.mu.Lock()
	c.fetchedAt = time.Now().Add(-(TTL + time.Second))
	c.mu.Unlock()

	_, err = c.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClient_GetRegistry_NotYetExpired_UsesCache(t *testing.T) {
	var hits int32
	srv := newServer(t, `{"tools":[]}`, http.StatusOK, &hits)
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetRegistry(context.Background())
	require.NoError(t, err)

	c.mu.Lock()
	c.fetchedAt = time.Now().Add(-(TTL - time.Second))
	c.mu.Unlock()

	_, err = c.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_GetRegistry_FetchError_ServesStaleCache(t *testing.T) {
	var hits int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"tools":[{"id":"weather","name":"Weather","description":"Current conditions and forecasts","config":{"command":"npx"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	first, err := c.GetRegistry(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Tools, 1)

	failing.Store(true)
	c.mu.Lock()
	c.fetchedAt = time.Now().Add(-(TTL + time.Second))
	c.mu.Unlock()

	second, err := c.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Tools, second.Tools)
}

func TestClient_GetRegistry_FetchError_NoCacheYet_Errors(t *testing.T) {
	var hits int32
	srv := newServer(t, "", http.StatusInternalServerError, &hits)
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetRegistry(context.Background())
	require.Error(t, err)
	assert.Equal(t, orcherr.RegistryError, orcherr.KindOf(err))
}

func TestClient_GetToolByID_NotFound(t *testing.T) {
	var hits int32
	srv := newServer(t, `{"tools":[]}`, http.StatusOK, &hits)
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetToolByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))
}

func TestClient_GetRegistry_ConcurrentCallsCoalesce(t *testing.T) {
	var hits int32
	srv := newServer(t, `{"tools":[]}`, http.StatusOK, &hits)
	defer srv.Close()

	c := New(srv.URL, nil)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, err := c.GetRegistry(context.Background())
			assert.NoError(t, err)
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
