// Package shell runs a command in a host shell and returns its standard
// output as a string, dispatching at runtime on runtime.GOOS — os/exec
// with "sh -c" on POSIX, "cmd /C" on Windows.
package shell

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"

	"github.com/chazu/knight/internal/knerr"
)

// Runner executes a single shell command and returns its stdout; the
// command's stderr is not captured.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

type hostShell struct{}

// New returns the Runner appropriate for the current OS.
func New() Runner { return hostShell{} }

func (hostShell) Run(ctx context.Context, cmd string) (string, error) {
	var c *exec.Cmd
	if runtime.GOOS == "windows" {
		c = exec.CommandContext(ctx, "cmd", "/C", cmd)
	} else {
		c = exec.CommandContext(ctx, "sh", "-c", cmd)
	}
	var out bytes.Buffer
	c.Stdout = &out
	if err := c.Run(); err != nil {
		return "", knerr.Shellf("shell command failed: %v", err)
	}
	return out.String(), nil
}
