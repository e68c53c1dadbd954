package engine

import (
	"context"
	"fmt"
	"time"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/progress"
)

const (
	// canaryWeightLabel documents the canary's intended traffic share for
	// whatever ingress sits in front of the host; dockerpilot itself does
	// not split traffic.
	canaryWeightLabel = "dockerpilot.canary.weight"
	canaryWeight      = "5"

	canaryObserveWindow  = 30 * time.Second
	canaryObserveSamples = 6
	canaryFailThreshold  = 0.05 // fraction of failed probes that triggers rollback, per §4.7.5 step 2
)

// canaryDeploy implements §4.7.5: a low-weight canary container observed
// for restarts and probe failures before being promoted to the live name.
func canaryDeploy(ctx context.Context, e *Engine, lease *progress.Lease, client dockerclient.API, d descriptor.ContainerDescriptor, opts PromoteOptions) (string, error) {
	lease.Update(progress.StageStarting, 0, "preparing canary")

	canaryName := fmt.Sprintf("%s-canary", d.ContainerName)

	lease.Update(progress.StageBuilding, 15, fmt.Sprintf("building %s", d.ImageTag))
	if err := buildFromDockerfile(ctx, client, opts.DockerfilePath, d.ImageTag); err != nil {
		return "", err
	}
	if lease.CancelRequested() {
		return "", cancelled(lease, 15)
	}

	lease.Update(progress.StageCreating, 35, fmt.Sprintf("creating %s", canaryName))
	canaryDescriptor := d
	canaryDescriptor.ContainerName = canaryName
	canaryDescriptor.Labels = mergeLabels(d.Labels, map[string]string{canaryWeightLabel: canaryWeight})
	cfg, hostCfg, netCfg := buildContainerConfig(canaryDescriptor, false)
	if _, err := client.CreateContainer(ctx, canaryName, cfg, hostCfg, netCfg); err != nil {
		return "", err
	}
	if err := client.StartContainer(ctx, canaryName); err != nil {
		_ = client.RemoveContainer(ctx, canaryName, true)
		return "", err
	}

	lease.Update(progress.StageValidating, 45, "observing canary")
	p := resolveProbe(e.Health, d)
	baseRestarts := 0
	if info, err := client.InspectContainer(ctx, canaryName); err == nil {
		baseRestarts = info.RestartCount
	}

	failures := 0
	interval := canaryObserveWindow / canaryObserveSamples
	for i := 0; i < canaryObserveSamples; i++ {
		select {
		case <-ctx.Done():
			_ = client.StopContainer(ctx, canaryName, nil)
			_ = client.RemoveContainer(ctx, canaryName, true)
			return "", ctx.Err()
		case <-time.After(interval):
		}
		if lease.CancelRequested() {
			_ = client.StopContainer(ctx, canaryName, nil)
			_ = client.RemoveContainer(ctx, canaryName, true)
			return "", cancelled(lease, 45+i)
		}
		if err := probe(ctx, p, "http://127.0.0.1"); err != nil {
			failures++
		}
		if stats, err := client.ContainerStats(ctx, canaryName); err == nil {
			stats.Body.Close()
		}
		lease.Update(progress.StageValidating, 45+((i+1)*40)/canaryObserveSamples, fmt.Sprintf("observed %d/%d", i+1, canaryObserveSamples))
	}

	if info, err := client.InspectContainer(ctx, canaryName); err == nil && info.RestartCount > baseRestarts {
		_ = client.StopContainer(ctx, canaryName, nil)
		_ = client.RemoveContainer(ctx, canaryName, true)
		return "", apierrors.New("canaryDeploy", apierrors.KindProbeFailed, fmt.Errorf("canary restarted during observation window"))
	}
	if failRate := float64(failures) / float64(canaryObserveSamples); failRate > canaryFailThreshold {
		_ = client.StopContainer(ctx, canaryName, nil)
		_ = client.RemoveContainer(ctx, canaryName, true)
		return "", apierrors.New("canaryDeploy", apierrors.KindProbeFailed, fmt.Errorf("canary probe failure rate %.0f%% exceeded threshold", failRate*100))
	}

	lease.Update(progress.StageSwitching, 90, "promoting canary")
	stopTimeout := 10 * time.Second
	_ = client.StopContainer(ctx, d.ContainerName, &stopTimeout)
	_ = client.RemoveContainer(ctx, d.ContainerName, true)

	if err := client.StopContainer(ctx, canaryName, nil); err != nil {
		return "", err
	}
	_ = client.RemoveContainer(ctx, canaryName, true)

	cfg, hostCfg, netCfg = buildContainerConfig(d, true)
	if _, err := client.CreateContainer(ctx, d.ContainerName, cfg, hostCfg, netCfg); err != nil {
		return "", err
	}
	if err := client.StartContainer(ctx, d.ContainerName); err != nil {
		return "", err
	}

	lease.Update(progress.StageCompleted, 100, "deployed")
	return d.ImageTag, nil
}
