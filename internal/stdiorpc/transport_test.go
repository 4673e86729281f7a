package stdiorpc_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
	"github.com/mcpctl/orchestrator/internal/stdiorpc"
)

// pipePair wires a Transport's "stdin" into a reader the test can decode
// requests from, and lets the test write raw response lines into what the
// Transport reads as "stdout".
type pipePair struct {
	toServer   *io.PipeReader
	fromServer *io.PipeWriter
	transport  *stdiorpc.Transport
}

func newPipePair(serverID string) *pipePair {
	serverStdin, clientStdin := io.Pipe()
	clientStdout, serverStdout := io.Pipe()
	return &pipePair{
		toServer:   serverStdin,
		fromServer: serverStdout,
		transport:  stdiorpc.New(serverID, clientStdin, clientStdout),
	}
}

func readRequest(t *testing.T, r io.Reader) mcprotocol.Request {
	t.Helper()
	dec := json.NewDecoder(r)
	var req mcprotocol.Request
	require.NoError(t, dec.Decode(&req))
	return req
}

func TestTransport_RPCCall_Success(t *testing.T) {
	pp := newPipePair("weather")

	go func() {
		req := readRequest(t, pp.toServer)
		resp := mcprotocol.Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
		b, _ := json.Marshal(resp)
		pp.fromServer.Write(append(b, '\n'))
	}()

	result, err := pp.transport.RPCCall(context.Background(), "tools/list", nil, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestTransport_RPCCall_ToolExecutionError(t *testing.T) {
	pp := newPipePair("weather")

	go func() {
		req := readRequest(t, pp.toServer)
		resp := mcprotocol.Response{JSONRPC: "2.0", ID: req.ID, Error: &mcprotocol.RPCError{Code: -32000, Message: "boom"}}
		b, _ := json.Marshal(resp)
		pp.fromServer.Write(append(b, '\n'))
	}()

	_, err := pp.transport.RPCCall(context.Background(), "tools/call", nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, orcherr.ToolExecutionError, orcherr.KindOf(err))
}

func TestTransport_RPCCall_Timeout(t *testing.T) {
	pp := newPipePair("weather")
	go readRequest(t, pp.toServer) // drain but never respond

	_, err := pp.transport.RPCCall(context.Background(), "tools/list", nil, 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, orcherr.Timeout, orcherr.KindOf(err))
}

func TestTransport_RPCCall_ServerClosedConnection(t *testing.T) {
	pp := newPipePair("weather")

	go func() {
		readRequest(t, pp.toServer)
		pp.fromServer.Close() // EOF on stdout
	}()

	_, err := pp.transport.RPCCall(context.Background(), "tools/list", nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, orcherr.TransportError, orcherr.KindOf(err))
}

func TestTransport_RPCCall_JsonParseError(t *testing.T) {
	pp := newPipePair("weather")

	go func() {
		readRequest(t, pp.toServer)
		pp.fromServer.Write([]byte("not json\n"))
	}()

	_, err := pp.transport.RPCCall(context.Background(), "tools/list", nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, orcherr.ProtocolError, orcherr.KindOf(err))
}

func TestTransport_RPCCall_ConcurrentCallsMatchByID(t *testing.T) {
	pp := newPipePair("weather")

	go func() {
		reqs := make([]mcprotocol.Request, 2)
		reqs[0] = readRequest(t, pp.toServer)
		reqs[1] = readRequest(t, pp.toServer)

		// Reply out of order: second request first.
		for _, i := range []int{1, 0} {
			resp := mcprotocol.Response{
				JSONRPC: "2.0",
				ID:      reqs[i].ID,
				Result:  json.RawMessage(`{"from":"` + reqs[i].ID.(string) + `"}`),
			}
			b, _ := json.Marshal(resp)
			pp.fromServer.Write(append(b, '\n'))
		}
	}()

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := pp.transport.RPCCall(context.Background(), "tools/call", nil, time.Second)
			require.NoError(t, err)
			results <- string(result)
		}()
	}

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			got = append(got, r)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for concurrent calls to resolve")
		}
	}
	assert.Len(t, got, 2)
}

func TestTransport_RPCCall_SucceedsAfterEarlierCallTimedOut(t *testing.T) {
	pp := newPipePair("weather")

	// First request is read but never answered: its RPCCall times out.
	go readRequest(t, pp.toServer)
	_, err := pp.transport.RPCCall(context.Background(), "tools/list", nil, 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, orcherr.Timeout, orcherr.KindOf(err))

	// A second call on the same transport must still work: the single
	// reader goroutine must not have died or gotten stuck on the first
	// call's now-abandoned response.
	go func() {
		req := readRequest(t, pp.toServer)
		resp := mcprotocol.Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
		b, _ := json.Marshal(resp)
		pp.fromServer.Write(append(b, '\n'))
	}()

	result, err := pp.transport.RPCCall(context.Background(), "tools/list", nil, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestTransport_SendNotification_NoResponseExpected(t *testing.T) {
	pp := newPipePair("weather")

	received := make(chan mcprotocol.Request, 1)
	go func() {
		received <- readRequest(t, pp.toServer)
	}()

	require.NoError(t, pp.transport.SendNotification("notifications/progress", nil))

	select {
	case req := <-received:
		assert.Equal(t, "notifications/progress", req.Method)
		assert.Nil(t, req.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not written")
	}
}
