//go:build windows

package supervisor

import (
	"context"
	"os/exec"
	"syscall"
)

// buildCmd runs command+args through cmd.exe so PATH and user profile
// setup apply the same way they would from an interactive shell, with
// the console window suppressed since the child is supervised, not
// interactive.
func buildCmd(ctx context.Context, command string, args []string) *exec.Cmd {
	parts := append([]string{"/C", command}, args...)
	cmd := exec.CommandContext(ctx, "cmd", parts...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: 0x08000000} // CREATE_NO_WINDOW
	return cmd
}
