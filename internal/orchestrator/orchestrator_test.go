package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpctl/orchestrator/internal/config"
	"github.com/mcpctl/orchestrator/internal/orchestrator"
)

func newTestAppDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgStore := config.NewStore(dir)
	settings := config.DefaultSettings()
	settings.ControlPlaneAddr = "127.0.0.1:0"
	require.NoError(t, cfgStore.Save(settings))
	return dir
}

func TestNew_OpensCatalogAndAppliesSettings(t *testing.T) {
	dir := newTestAppDir(t)

	o, err := orchestrator.New(dir)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.NoError(t, o.Shutdown())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	dir := newTestAppDir(t)

	o, err := orchestrator.New(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
