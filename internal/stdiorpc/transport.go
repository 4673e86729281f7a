// Package stdiorpc is the line-delimited JSON-RPC 2.0 transport used to
// talk to a backend MCP server over its own stdin/stdout. One newline
// terminates one JSON object; there is no other framing.
//
// A Transport is stateless beyond its hold on the two pipe handles — it
// never retries a failed call. Retrying, restarting, or killing the
// backend on a transport error is the supervisor's decision, not this
// package's.
package stdiorpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
)

// rpcResult is what the transport's single reader goroutine hands back to
// a pending RPCCall: either a parsed response, or the error that ended
// the read loop (EOF, broken pipe, malformed line).
type rpcResult struct {
	resp mcprotocol.Response
	err  error
}

// Transport wraps a spawned backend's stdin/stdout pipes. One reader
// goroutine owns stdout for the Transport's whole lifetime and dispatches
// each line to the pending call whose id matches, so responses can never
// be delivered to the wrong caller even with several RPCCalls in flight
// at once.
type Transport struct {
	serverID string
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	counter  int64

	mu       sync.Mutex
	pending  map[string]chan rpcResult
	closed   bool
	closeErr error
}

// New wraps a child's pipes for the given server id and starts its reader
// loop. The caller owns draining the child's stderr separately via
// DrainStderr.
func New(serverID string, stdin io.WriteCloser, stdout io.Reader) *Transport {
	t := &Transport{
		serverID: serverID,
		stdin:    stdin,
		stdout:   bufio.NewReaderSize(stdout, 64*1024),
		pending:  make(map[string]chan rpcResult),
	}
	go t.readLoop()
	return t
}

// readLoop reads one response line at a time for the lifetime of the
// Transport and routes each to the pending call registered under its id.
// A line whose id matches nothing in flight (a stray notification, or a
// response to a call that already timed out) is logged and dropped. Once
// the stream ends, every still-pending call is unblocked with the same
// terminal error instead of hanging forever.
func (t *Transport) readLoop() {
	for {
		line, err := t.stdout.ReadBytes('\n')
		if err != nil {
			t.failAllPending(err)
			return
		}

		var resp mcprotocol.Response
		if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
			parseErr := orcherr.Wrap(orcherr.ProtocolError, jsonErr, "parsing response line from %s", t.serverID)
			logger.AddLog("ERROR", parseErr.Error())
			// A malformed line can't be matched to any one pending id, so
			// every call currently in flight loses its chance at a real
			// response; fail them all rather than leave them hanging.
			t.failCurrentPending(parseErr)
			continue
		}

		id := fmt.Sprint(resp.ID)
		t.mu.Lock()
		ch, ok := t.pending[id]
		if ok {
			delete(t.pending, id)
		}
		t.mu.Unlock()

		if !ok {
			logger.AddLog("WARN", fmt.Sprintf("[%s] response to unknown or expired call id %s", t.serverID, id))
			continue
		}
		ch <- rpcResult{resp: resp}
	}
}

// failAllPending delivers err to every call still waiting on a response
// and marks the transport closed so later RPCCalls fail immediately
// instead of registering a pending entry nothing will ever fill.
func (t *Transport) failAllPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.closeErr = err
	for id, ch := range t.pending {
		ch <- rpcResult{err: err}
		delete(t.pending, id)
	}
}

// failCurrentPending delivers err to every call waiting on a response
// right now, without closing the transport — used when a single bad
// line can't be attributed to one pending id, but later calls on the
// same transport should still get a chance to succeed.
func (t *Transport) failCurrentPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		ch <- rpcResult{err: err}
		delete(t.pending, id)
	}
}

func (t *Transport) nextID(method string) string {
	n := atomic.AddInt64(&t.counter, 1)
	return fmt.Sprintf("%s:%s:%d", t.serverID, method, n)
}

// RPCCall writes a JSON-RPC request terminated by a single newline,
// flushes, and waits for the readLoop to deliver the response carrying
// the same id within timeout. The request id is derived from
// (server_id, method, a monotonically increasing counter).
//
// EOF while reading the response, and a write failure (typically a
// broken pipe once the child has died), map to TransportError. Exceeding
// timeout maps to Timeout. A malformed response line maps to
// ProtocolError. A response carrying a JSON-RPC error object maps to
// ToolExecutionError, whose message carries the RPCError's message and
// code.
func (t *Transport) RPCCall(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	id := t.nextID(method)
	req := mcprotocol.Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.ProtocolError, err, "marshaling request %s for %s", method, t.serverID)
	}
	reqBytes = append(reqBytes, '\n')

	ch := make(chan rpcResult, 1)
	t.mu.Lock()
	if t.closed {
		closeErr := t.closeErr
		t.mu.Unlock()
		return nil, orcherr.Wrap(orcherr.TransportError, closeErr, "server %s closed connection", t.serverID)
	}
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if _, err := t.stdin.Write(reqBytes); err != nil {
		return nil, orcherr.Wrap(orcherr.TransportError, err, "writing %s to %s", method, t.serverID)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			// A pre-classified failure (e.g. a parse error from readLoop)
			// already carries the right Kind; wrapping it again would
			// bury it under a generic TransportError.
			if orcherr.KindOf(res.err) != "" {
				return nil, res.err
			}
			if errors.Is(res.err, io.EOF) {
				return nil, orcherr.Wrap(orcherr.TransportError, res.err, "server %s closed connection", t.serverID)
			}
			return nil, orcherr.Wrap(orcherr.TransportError, res.err, "reading response to %s from %s", method, t.serverID)
		}

		resp := res.resp
		if resp.Error != nil {
			return nil, orcherr.New(orcherr.ToolExecutionError, fmt.Sprintf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code))
		}
		return resp.Result, nil

	case <-time.After(timeout):
		return nil, orcherr.New(orcherr.Timeout, fmt.Sprintf("%s timed out after %s calling %s", t.serverID, timeout, method))

	case <-ctx.Done():
		return nil, orcherr.Wrap(orcherr.Timeout, ctx.Err(), "context cancelled waiting for %s from %s", method, t.serverID)
	}
}

// DrainStderr copies a child's stderr into the shared logger line by line,
// tagged with serverID, on its own goroutine until the stream ends. The
// lines are never parsed.
func DrainStderr(serverID string, stderr io.Reader) {
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.AddLog("INFO", fmt.Sprintf("[%s] stderr: %s", serverID, scanner.Text()))
		}
	}()
}

// SendNotification fire-and-forgets a notification (no id, no response
// expected) and returns immediately after the write.
func (t *Transport) SendNotification(method string, params json.RawMessage) error {
	req := mcprotocol.Request{JSONRPC: "2.0", Method: method, Params: params}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return orcherr.Wrap(orcherr.ProtocolError, err, "marshaling notification %s for %s", method, t.serverID)
	}
	reqBytes = append(reqBytes, '\n')

	if _, err := t.stdin.Write(reqBytes); err != nil {
		return orcherr.Wrap(orcherr.TransportError, err, "writing notification %s to %s", method, t.serverID)
	}
	return nil
}

// settleWindow is how long InitializedNotification waits after sending
// notifications/initialized, giving the child time to finish its own
// startup before the first real request arrives.
const settleWindow = 1 * time.Second

// InitializedNotification sends notifications/initialized and waits out
// the post-send settle window.
func (t *Transport) InitializedNotification() error {
	if err := t.SendNotification("notifications/initialized", nil); err != nil {
		return err
	}
	time.Sleep(settleWindow)
	return nil
}
