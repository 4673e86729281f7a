// Package client is the CLI's HTTP transport to the Control Plane: a
// thin JSON-RPC 2.0 caller over POST /mcp-proxy. No business logic lives
// here — every subcommand just picks a method name and params.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ControlClient talks JSON-RPC to one orchestrator's Control Plane.
type ControlClient struct {
	baseURL string
	http    *http.Client
	nextID  int
}

// New builds a ControlClient bound to baseURL (e.g. "http://127.0.0.1:3000").
func New(baseURL string, timeout time.Duration) *ControlClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ControlClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// rpcResponse mirrors the wire shape of mcprotocol.Response without
// importing the daemon's package, keeping the CLI's dependency surface
// to net/http and encoding/json.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call issues one JSON-RPC request and decodes its result into out (if
// non-nil). A JSON-RPC error object is returned as a Go error.
func (c *ControlClient) Call(method string, params any, out any) error {
	c.nextID++
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+"/mcp-proxy", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if rpc.Error != nil {
		return rpc.Error
	}
	if out != nil && len(rpc.Result) > 0 {
		return json.Unmarshal(rpc.Result, out)
	}
	return nil
}

// callToolResult mirrors mcprotocol.CallToolResult: tools/call always
// wraps its payload as a single text content block carrying JSON.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// CallTool invokes the given tool name over tools/call and unwraps the
// single text content block back into out.
func (c *ControlClient) CallTool(name string, args map[string]any, out any) error {
	var wrapped callToolResult
	if err := c.Call("tools/call", map[string]any{"name": name, "arguments": args}, &wrapped); err != nil {
		return err
	}
	if out == nil || len(wrapped.Content) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(wrapped.Content[0].Text), out)
}

// Health hits GET /health directly; it is the one endpoint outside the
// JSON-RPC dispatch table.
func (c *ControlClient) Health() error {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
