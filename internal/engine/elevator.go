package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"dockerpilot/internal/backup"
)

// LocalElevator runs a privileged command on the machine the engine itself
// is running on via "sudo -S", feeding secret on stdin — the local half of
// §4.6's elevation contract. Remote privileged backups run the same
// command over the host's SSH transport instead; wiring that in is left
// for when hostregistry exposes a raw exec channel alongside the Docker
// API tunnel (today it only forwards the daemon socket).
type LocalElevator struct{}

var _ backup.Elevator = LocalElevator{}

// RunPrivileged runs cmd with "sudo -S" prepended, writing secret followed
// by a newline to the child's stdin.
func (LocalElevator) RunPrivileged(ctx context.Context, cmd []string, secret string) (stdout, stderr string, exitCode int, err error) {
	args := append([]string{"-S"}, cmd...)
	c := exec.CommandContext(ctx, "sudo", args...)
	c.Stdin = strings.NewReader(secret + "\n")

	var outBuf, errBuf bytes.Buffer
	c.Stdout = &outBuf
	c.Stderr = &errBuf

	runErr := c.Run()
	code := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
		runErr = nil
	}
	return outBuf.String(), errBuf.String(), code, runErr
}
