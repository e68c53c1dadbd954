package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/progress"
)

// rollingDeploy implements §4.7.3: a zero-downtime single-replica swap via
// rename. The new container is probed unbound from the live ports before
// the old one is ever touched.
func rollingDeploy(ctx context.Context, e *Engine, lease *progress.Lease, client dockerclient.API, d descriptor.ContainerDescriptor, opts PromoteOptions) (string, error) {
	lease.Update(progress.StageStarting, 0, "capturing current state")

	tmpName := fmt.Sprintf("%s-new-%s", d.ContainerName, shortUUID())

	lease.Update(progress.StageBuilding, 10, fmt.Sprintf("building %s", d.ImageTag))
	if err := buildFromDockerfile(ctx, client, opts.DockerfilePath, d.ImageTag); err != nil {
		return "", err
	}
	if lease.CancelRequested() {
		return "", cancelled(lease, 10)
	}

	lease.Update(progress.StageCreating, 40, fmt.Sprintf("creating %s", tmpName))
	probeDescriptor := d
	probeDescriptor.ContainerName = tmpName
	cfg, hostCfg, netCfg := buildContainerConfig(probeDescriptor, false)
	if _, err := client.CreateContainer(ctx, tmpName, cfg, hostCfg, netCfg); err != nil {
		return "", err
	}
	if err := client.StartContainer(ctx, tmpName); err != nil {
		_ = client.RemoveContainer(ctx, tmpName, true)
		return "", err
	}

	select {
	case <-ctx.Done():
		_ = client.RemoveContainer(ctx, tmpName, true)
		return "", ctx.Err()
	case <-time.After(5 * time.Second):
	}

	lease.Update(progress.StageValidating, 60, "validating new container")
	p := resolveProbe(e.Health, d)
	retries := d.HealthcheckRetries
	if retries <= 0 {
		retries = 3
	}
	healthy := true
	for attempt := 0; attempt < retries; attempt++ {
		if err := probe(ctx, p, "http://127.0.0.1"); err != nil {
			healthy = false
		} else {
			healthy = true
			break
		}
		time.Sleep(2 * time.Second)
	}

	if !healthy {
		_ = client.StopContainer(ctx, tmpName, nil)
		_ = client.RemoveContainer(ctx, tmpName, true)
		return "", apierrors.New("rollingDeploy", apierrors.KindProbeFailed, fmt.Errorf("new container failed health probe"))
	}

	if lease.CancelRequested() {
		_ = client.StopContainer(ctx, tmpName, nil)
		_ = client.RemoveContainer(ctx, tmpName, true)
		return "", cancelled(lease, 60)
	}

	lease.Update(progress.StageSwitching, 80, "switching to new container")
	stopTimeout := 10 * time.Second
	_ = client.StopContainer(ctx, d.ContainerName, &stopTimeout)

	oldName := fmt.Sprintf("%s-old-%d", d.ContainerName, time.Now().Unix())
	if err := client.RenameContainer(ctx, d.ContainerName, oldName); err != nil && !apierrors.Is(err, apierrors.KindNotFound) {
		return "", err
	}
	if err := client.RenameContainer(ctx, tmpName, d.ContainerName); err != nil {
		return "", err
	}

	// Rebind ports on the original names by restarting with the original
	// port map now that the new container owns the live name.
	if err := client.StopContainer(ctx, d.ContainerName, nil); err == nil {
		_ = client.RemoveContainer(ctx, d.ContainerName, true)
		cfg, hostCfg, netCfg = buildContainerConfig(d, true)
		if _, err := client.CreateContainer(ctx, d.ContainerName, cfg, hostCfg, netCfg); err != nil {
			return "", err
		}
		if err := client.StartContainer(ctx, d.ContainerName); err != nil {
			return "", err
		}
	}

	lease.Update(progress.StageCleaningUp, 95, fmt.Sprintf("soaking %s before removal", oldName))
	go soakAndRemove(client, oldName, 30*time.Second)

	lease.Update(progress.StageCompleted, 100, "deployed")
	return d.ImageTag, nil
}

// soakAndRemove removes name after a grace period, giving an operator a
// window to intervene manually; failures are not reported since nothing
// is awaiting this background cleanup.
func soakAndRemove(client dockerclient.API, name string, soak time.Duration) {
	time.Sleep(soak)
	_ = client.RemoveContainer(context.Background(), name, true)
}

func shortUUID() string {
	return uuid.New().String()[:8]
}
