package proxyrouter

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/mcpctl/orchestrator/internal/orcherr"
)

// runScript executes a sandboxed JS snippet with a callTool(name, args)
// bridge back into the router, so one MCP call can compose several tool
// invocations without the caller round-tripping for each.
func (r *Router) runScript(ctx context.Context, args map[string]any) (any, error) {
	script, ok := stringArg(args, "script")
	if !ok {
		return nil, orcherr.New(orcherr.InvalidConfiguration, "script is required")
	}
	scriptArgs, _ := args["arguments"].(map[string]any)

	vm := goja.New()
	vm.Set("args", scriptArgs)
	vm.Set("callTool", func(name string, params map[string]any) any {
		result, err := r.resolveAndCall(ctx, name, params)
		if err != nil {
			return fmt.Sprintf("error calling %s: %v", name, err)
		}
		return result
	})

	value, err := vm.RunString(fmt.Sprintf("(function() { %s })()", script))
	if err != nil {
		return nil, orcherr.Wrap(orcherr.ToolExecutionError, err, "run_script")
	}
	return value.Export(), nil
}
