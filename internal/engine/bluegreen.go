package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/mount"
	"github.com/hashicorp/go-multierror"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/progress"
)

const (
	colorBlue  = "blue"
	colorGreen = "green"

	// colorLabel records the active color on the live container so the
	// next deploy can pick the opposite one.
	colorLabel = "dockerpilot.color"

	// blueGreenSoak is how long the previous color is kept, renamed,
	// before cleanup — long enough for an operator to swap names back.
	blueGreenSoak = 60 * time.Second
)

// blueGreenDeploy implements §4.7.4.
func blueGreenDeploy(ctx context.Context, e *Engine, lease *progress.Lease, client dockerclient.API, d descriptor.ContainerDescriptor, opts PromoteOptions) (string, error) {
	lease.Update(progress.StageStarting, 0, "determining color")

	currentColor := colorBlue
	var oldDescriptor *descriptor.ContainerDescriptor // full mount list of the live container, for the data-migration step
	if info, err := client.InspectContainer(ctx, d.ContainerName); err == nil {
		if c, ok := info.Labels[colorLabel]; ok && c != "" {
			currentColor = c
		} else {
			currentColor = colorGreen // nothing labeled yet: treat as "green" so the new deploy claims blue
		}
		if full, ferr := descriptor.Introspect(ctx, client, d.ContainerName); ferr == nil {
			oldDescriptor = &full
		}
	}
	newColor := colorBlue
	if currentColor == colorBlue {
		newColor = colorGreen
	}
	newName := fmt.Sprintf("%s-%s", d.ContainerName, newColor)

	lease.Update(progress.StageBuilding, 15, fmt.Sprintf("building %s", d.ImageTag))
	if err := buildFromDockerfile(ctx, client, opts.DockerfilePath, d.ImageTag); err != nil {
		return "", err
	}
	if lease.CancelRequested() {
		return "", cancelled(lease, 15)
	}

	lease.Update(progress.StageCreating, 35, fmt.Sprintf("creating %s", newName))
	probeDescriptor := d
	probeDescriptor.ContainerName = newName
	probeDescriptor.Labels = mergeLabels(d.Labels, map[string]string{colorLabel: newColor})
	cfg, hostCfg, netCfg := buildContainerConfig(probeDescriptor, false)
	if _, err := client.CreateContainer(ctx, newName, cfg, hostCfg, netCfg); err != nil {
		return "", err
	}
	if err := client.StartContainer(ctx, newName); err != nil {
		_ = client.RemoveContainer(ctx, newName, true)
		return "", err
	}

	lease.Update(progress.StageValidating, 50, "validating new color")
	p := resolveProbe(e.Health, d)
	if err := probe(ctx, p, "http://127.0.0.1"); err != nil {
		_ = client.StopContainer(ctx, newName, nil)
		_ = client.RemoveContainer(ctx, newName, true)
		return "", err
	}

	if oldDescriptor != nil {
		lease.Update(progress.StageMigratingData, 65, "migrating volume data")
		if err := migrateVolumeData(ctx, client, *oldDescriptor, d); err != nil {
			return "", err
		}
		copyKnownDBConfig(ctx, client, d, d.ContainerName, newName)
	}

	if lease.CancelRequested() {
		_ = client.StopContainer(ctx, newName, nil)
		_ = client.RemoveContainer(ctx, newName, true)
		return "", cancelled(lease, 65)
	}

	lease.Update(progress.StageSwitching, 85, "switching live traffic")
	stopTimeout := 10 * time.Second
	_ = client.StopContainer(ctx, d.ContainerName, &stopTimeout)

	oldRenamed := fmt.Sprintf("%s-%s", d.ContainerName, currentColor)
	_ = client.RenameContainer(ctx, d.ContainerName, oldRenamed)

	if err := client.StopContainer(ctx, newName, nil); err == nil {
		_ = client.RemoveContainer(ctx, newName, true)
		cfg, hostCfg, netCfg = buildContainerConfig(probeDescriptor, true)
		if _, err := client.CreateContainer(ctx, d.ContainerName, cfg, hostCfg, netCfg); err != nil {
			return "", err
		}
		if err := client.StartContainer(ctx, d.ContainerName); err != nil {
			return "", err
		}
	}

	lease.Update(progress.StageCleaningUp, 95, fmt.Sprintf("keeping %s for rollback window", oldRenamed))
	go soakAndRemove(client, oldRenamed, blueGreenSoak)

	lease.Update(progress.StageCompleted, 100, "deployed")
	return d.ImageTag, nil
}

func mergeLabels(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// migrateVolumeData copies data for each mount in new.Volumes that differs
// from the mount the old container had at the same mount path, per §4.7.4
// step 4: named volumes distinct from the old container's corresponding
// volume, and bind mounts at distinct host paths, are both copied the same
// way through an ephemeral helper's `cp -a`; matching volume names or host
// paths are treated as already shared. Each mount is independent of the
// others, so one copy failing doesn't stop the rest from being attempted;
// all failures are reported together.
func migrateVolumeData(ctx context.Context, client dockerclient.API, old, new descriptor.ContainerDescriptor) error {
	oldByPath := make(map[string]descriptor.MountSpec, len(old.Volumes))
	for _, m := range old.Volumes {
		oldByPath[m.MountPath] = m
	}

	var result *multierror.Error
	for _, m := range new.Volumes {
		oldMount, existed := oldByPath[m.MountPath]
		if !existed {
			continue // nothing to migrate from
		}

		if m.IsBindMount() {
			if oldMount.HostPath == m.HostPath {
				continue // same host path: already shared, no copy needed
			}
			if _, err := client.RunEphemeral(ctx, dockerclient.AlpineHelperImage,
				[]string{"sh", "-c", "cp -a /source/. /target/"},
				[]dockerclient.EphemeralMount{
					{Type: mount.TypeBind, Source: oldMount.HostPath, Target: "/source", ReadOnly: true},
					{Type: mount.TypeBind, Source: m.HostPath, Target: "/target"},
				}); err != nil {
				result = multierror.Append(result, fmt.Errorf("bind mount %q: %w", m.HostPath, err))
			}
			continue
		}

		if oldMount.VolumeName == m.VolumeName {
			continue // same volume: already shared, no copy needed
		}
		_, err := client.RunEphemeral(ctx, dockerclient.AlpineHelperImage,
			[]string{"sh", "-c", "cp -a /source/. /target/"},
			[]dockerclient.EphemeralMount{
				{Type: mount.TypeVolume, Source: oldMount.VolumeName, Target: "/source", ReadOnly: true},
				{Type: mount.TypeVolume, Source: m.VolumeName, Target: "/target"},
			})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("volume %q: %w", m.VolumeName, err))
		}
	}
	if result != nil {
		return apierrors.New("blueGreenDeploy", apierrors.KindVolumeCopyFailed, result.ErrorOrNil())
	}
	return nil
}

// copyKnownDBConfig additionally copies a recognized database family's
// config subtree from the old (still-live) container to the newly created
// one, per §4.7.4 step 4's closing clause. Failures here are non-fatal:
// config-subtree copy is a best-effort convenience.
func copyKnownDBConfig(ctx context.Context, client dockerclient.API, d descriptor.ContainerDescriptor, oldContainer, newContainer string) {
	for family, path := range dbConfigSubtrees {
		if !imageMatchesFamily(d.ImageTag, family) {
			continue
		}
		rc, err := client.CopyFromContainer(ctx, oldContainer, path)
		if err != nil {
			return
		}
		defer rc.Close()
		_ = client.CopyToContainer(ctx, newContainer, path, rc)
		return
	}
}

func imageMatchesFamily(image, family string) bool {
	return strings.Contains(image, family)
}
