package engine

import (
	"context"
	"fmt"
	"os"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/progress"
)

// quickDeploy implements §4.7.2: build, stop+remove the old container,
// create+start the new one, clean up the old image, validate. Intended
// for development; no rollback attempt beyond a best-effort recreate of
// the old container if the new one fails to create.
func quickDeploy(ctx context.Context, e *Engine, lease *progress.Lease, client dockerclient.API, d descriptor.ContainerDescriptor, opts PromoteOptions) (string, error) {
	lease.Update(progress.StageStarting, 0, "capturing current state")

	var priorImageID string
	oldExists := false
	if info, err := client.InspectContainer(ctx, d.ContainerName); err == nil {
		priorImageID = info.Image
		oldExists = true
	}

	lease.Update(progress.StageBuilding, 20, fmt.Sprintf("building %s", d.ImageTag))
	if err := buildFromDockerfile(ctx, client, opts.DockerfilePath, d.ImageTag); err != nil {
		return "", err
	}

	if lease.CancelRequested() {
		return "", cancelled(lease, 20)
	}

	if oldExists {
		lease.Update(progress.StageCleaningUp, 50, "stopping previous container")
		if err := client.StopContainer(ctx, d.ContainerName, nil); err != nil && !apierrors.Is(err, apierrors.KindNotFound) {
			return "", err
		}
		if err := client.RemoveContainer(ctx, d.ContainerName, true); err != nil && !apierrors.Is(err, apierrors.KindNotFound) {
			return "", err
		}
	}

	lease.Update(progress.StageCreating, 70, "creating new container")
	cfg, hostCfg, netCfg := buildContainerConfig(d, true)
	if _, err := client.CreateContainer(ctx, d.ContainerName, cfg, hostCfg, netCfg); err != nil {
		if oldExists && priorImageID != "" {
			recreateBestEffort(ctx, client, d, priorImageID)
		}
		return "", err
	}
	if err := client.StartContainer(ctx, d.ContainerName); err != nil {
		if oldExists && priorImageID != "" {
			recreateBestEffort(ctx, client, d, priorImageID)
		}
		return "", err
	}

	if !opts.NoCleanup && oldExists && priorImageID != "" && priorImageID != d.ImageTag {
		lease.Update(progress.StageCleaningUp, 85, "removing previous image")
		_ = client.RemoveImage(ctx, priorImageID, false)
	}

	lease.Update(progress.StageValidating, 95, "validating health")
	p := resolveProbe(e.Health, d)
	baseURL := probeBaseURL(d)
	if err := probe(ctx, p, baseURL); err != nil {
		return "", err
	}

	lease.Update(progress.StageCompleted, 100, "deployed")
	return d.ImageTag, nil
}

// recreateBestEffort attempts to bring the old container back from its
// captured image id after a failed create; failure here is swallowed,
// matching §4.7.2's "reported but does not return success".
func recreateBestEffort(ctx context.Context, client dockerclient.API, d descriptor.ContainerDescriptor, priorImageID string) {
	restored := d
	restored.ImageTag = priorImageID
	cfg, hostCfg, netCfg := buildContainerConfig(restored, true)
	if _, err := client.CreateContainer(ctx, d.ContainerName, cfg, hostCfg, netCfg); err == nil {
		_ = client.StartContainer(ctx, d.ContainerName)
	}
}

func buildFromDockerfile(ctx context.Context, client dockerclient.API, dockerfilePath, imageTag string) error {
	if dockerfilePath == "" {
		return apierrors.New("quickDeploy", apierrors.KindMissingField, fmt.Errorf("dockerfile path required to build %s", imageTag))
	}
	f, err := os.Open(dockerfilePath)
	if err != nil {
		return apierrors.New("quickDeploy", apierrors.KindIOError, err)
	}
	defer f.Close()
	return client.BuildImage(ctx, f, "Dockerfile", imageTag, nil)
}

// probeBaseURL is a placeholder host address for the HTTP probe: in a
// same-host deployment, the container is reachable at localhost on one
// of the descriptor's bound host ports. With several bindings, the port is
// whichever the map iteration yields first; with none, no port is given.
func probeBaseURL(d descriptor.ContainerDescriptor) string {
	for _, hostPort := range d.PortBindings {
		return "http://127.0.0.1:" + hostPort
	}
	return "http://127.0.0.1"
}

// errCancelled is the sentinel a strategy returns after observing
// cancellation and transitioning the lease to StageCancelled itself; the
// driver recognizes it and skips writing a second terminal update.
var errCancelled = fmt.Errorf("engine: operation cancelled")

func cancelled(lease *progress.Lease, lastPercent int) error {
	lease.Update(progress.StageCancelled, lastPercent, "cancellation requested")
	return errCancelled
}
