package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) {
	t.Helper()
	require.NoError(t, Init(t.TempDir()))
	t.Cleanup(Close)
}

func TestAddLog_RedactsAPIKeys(t *testing.T) {
	setup(t)

	AddLog("INFO", "using key sk-mcpctl-abc123XYZ for upstream call")

	logs := GetLogs()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, "INFO", last.Level)
	assert.Contains(t, last.Message, "sk-mcpctl-REDACTED")
	assert.NotContains(t, last.Message, "abc123XYZ")
}

func TestAddLog_TrimsToMaxEntries(t *testing.T) {
	setup(t)

	for i := 0; i < maxEntries+10; i++ {
		AddLog("INFO", "filler")
	}
	assert.Len(t, GetLogs(), maxEntries)
}

func TestSubscribe_ReceivesSubsequentEntries(t *testing.T) {
	setup(t)

	sub := Subscribe()
	defer Unsubscribe(sub)

	AddLog("WARN", "backend restarted")

	select {
	case entry := <-sub:
		assert.Equal(t, "WARN", entry.Level)
		assert.Equal(t, "backend restarted", entry.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the new log entry")
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	setup(t)

	sub := Subscribe()
	Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed after Unsubscribe")
}

func TestClearLogs_EmptiesInMemoryBuffer(t *testing.T) {
	setup(t)

	AddLog("INFO", "something happened")
	require.NotEmpty(t, GetLogs())

	require.NoError(t, ClearLogs())
	assert.Empty(t, GetLogs())
	assert.NotEmpty(t, GetLogFilePath())
}
