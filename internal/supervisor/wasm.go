package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/mcpctl/orchestrator/internal/logger"
)

// spawnWasm runs a wasm-packaged MCP server (catalog.ToolsTypeWasm)
// in-process under wazero instead of os/exec. For a standard MCP tool
// over stdio, module instantiation *is* the execution: it blocks until
// the module returns or the run context is cancelled. That one-shot
// call is wired to pipe pairs so it looks, to stdiorpc.New, exactly
// like a spawned subprocess's piped stdio.
func spawnWasm(modulePath string, env map[string]string) (stdin io.WriteCloser, stdout io.ReadCloser, stderr io.ReadCloser, cancel context.CancelFunc, err error) {
	data, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	runCtx, cancelRun := context.WithCancel(context.Background())

	runtime := wazero.NewRuntime(runCtx)
	if _, err := wasi_snapshot_preview1.Instantiate(runCtx, runtime); err != nil {
		cancelRun()
		return nil, nil, nil, nil, err
	}

	module, err := runtime.CompileModule(runCtx, data)
	if err != nil {
		cancelRun()
		runtime.Close(runCtx)
		return nil, nil, nil, nil, err
	}

	stdinRead, stdinWrite := io.Pipe()
	stdoutRead, stdoutWrite := io.Pipe()
	stderrRead, stderrWrite := io.Pipe()

	config := wazero.NewModuleConfig().
		WithStdin(stdinRead).
		WithStdout(stdoutWrite).
		WithStderr(stderrWrite).
		WithArgs("mcp-tool")
	for k, v := range env {
		config = config.WithEnv(k, v)
	}

	go func() {
		mod, runErr := runtime.InstantiateModule(runCtx, module, config)
		if runErr != nil {
			logger.AddLog("ERROR", fmt.Sprintf("wasm module %s: %v", modulePath, runErr))
		} else {
			defer mod.Close(runCtx)
		}
		stdoutWrite.Close()
		stderrWrite.Close()
	}()

	cancel = func() {
		cancelRun()
		stdinWrite.Close()
		stdinRead.Close()
		stdoutRead.Close()
		stderrRead.Close()
		runtime.Close(context.Background())
	}

	return stdinWrite, stdoutRead, stderrRead, cancel, nil
}
