package dockerclient

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"

	"dockerpilot/internal/apierrors"
)

// EphemeralMount describes one bind or volume mount for a RunEphemeral
// invocation.
type EphemeralMount struct {
	Type     mount.Type // mount.TypeVolume or mount.TypeBind
	Source   string     // volume name or host path
	Target   string     // in-container path
	ReadOnly bool
}

// EphemeralResult carries the outcome of a RunEphemeral invocation.
type EphemeralResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// RunEphemeral pulls image if absent, runs it to completion with cmd and
// mounts, captures its exit code and logs, and removes the container
// regardless of outcome — the "ephemeral helper" primitive the backup
// subsystem and the migration engine build tar/cp operations on top of.
func (c *Client) RunEphemeral(ctx context.Context, image string, cmd []string, mounts []EphemeralMount) (EphemeralResult, error) {
	if _, exists, err := c.ImageInspect(ctx, image); err != nil {
		return EphemeralResult{}, err
	} else if !exists {
		if err := c.PullImage(ctx, image, nil); err != nil {
			return EphemeralResult{}, err
		}
	}

	var mm []mount.Mount
	for _, m := range mounts {
		mm = append(mm, mount.Mount{Type: m.Type, Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
	}

	resp, err := c.api.ContainerCreate(ctx,
		&container.Config{Image: image, Cmd: cmd},
		&container.HostConfig{Mounts: mm, AutoRemove: false},
		nil, nil, "")
	if err != nil {
		return EphemeralResult{}, mapDaemonError("RunEphemeral", err)
	}
	defer c.api.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return EphemeralResult{}, mapDaemonError("RunEphemeral", err)
	}

	statusCh, errCh := c.api.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			return EphemeralResult{}, mapDaemonError("RunEphemeral", err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		return EphemeralResult{}, apierrors.New("RunEphemeral", apierrors.KindTimeout, ctx.Err())
	}

	stdout, stderr := c.ephemeralLogs(ctx, resp.ID)
	result := EphemeralResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}
	if exitCode != 0 {
		return result, apierrors.New("RunEphemeral", apierrors.KindIOError,
			fmt.Errorf("helper container exited %d: %s", exitCode, stderr))
	}
	return result, nil
}

func (c *Client) ephemeralLogs(ctx context.Context, id string) (stdout, stderr string) {
	reader, err := c.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", ""
	}
	defer reader.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, reader); err != nil {
		return "", ""
	}
	return outBuf.String(), errBuf.String()
}
