package engine

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/docker/docker/api/types/mount"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/progress"
)

// Migrate implements §4.7.6: move a container from sourceHostID to
// targetHostID by saving/loading its image and, optionally, copying its
// volume data. Rejecting target==source happens before any progress
// record is created, per invariant 8 — a same-host "migration" writes no
// progress record at all.
func (e *Engine) Migrate(ctx context.Context, opts MigrateOptions) (string, error) {
	if opts.TargetHostID == opts.SourceHostID {
		return "", apierrors.New("Migrate", apierrors.KindSameHost, fmt.Errorf("source and target host are the same"))
	}

	lease, err := e.Progress.Acquire(opts.ContainerName)
	if err != nil {
		return "", err
	}

	go e.runMigration(lease, opts)
	return opts.ContainerName, nil
}

func (e *Engine) runMigration(lease *progress.Lease, opts MigrateOptions) {
	ctx := context.Background()
	started := time.Now()

	result, err := migrate(ctx, e, lease, opts)

	entry := DeploymentHistoryEntry{
		Timestamp:     started,
		Strategy:      "migrate",
		ContainerName: opts.ContainerName,
		DurationMS:    time.Since(started).Milliseconds(),
	}
	if err != nil && err != errCancelled {
		entry.Status = "failed"
		entry.Output = err.Error()
		if rec, ok := e.Progress.Get(opts.ContainerName); ok && !rec.Stage.IsTerminal() {
			lease.Update(progress.StageFailed, rec.Progress, err.Error())
		}
	} else if err == errCancelled {
		entry.Status = "cancelled"
	} else {
		entry.Status = "completed"
		entry.ContainerName = result
	}
	_ = e.recordHistory(ctx, entry)
}

func migrate(ctx context.Context, e *Engine, lease *progress.Lease, opts MigrateOptions) (string, error) {
	lease.Update(progress.StageStarting, 0, "resolving hosts")

	sourceClient, err := e.Hosts.Resolve(ctx, opts.SourceHostID)
	if err != nil {
		return "", err
	}
	defer sourceClient.Close()

	targetClient, err := e.Hosts.Resolve(ctx, opts.TargetHostID)
	if err != nil {
		return "", err
	}
	defer targetClient.Close()

	d, err := descriptor.Introspect(ctx, sourceClient, opts.ContainerName)
	if err != nil {
		return "", err
	}

	if lease.CancelRequested() {
		return "", cancelled(lease, 0)
	}

	lease.Update(progress.StageExporting, 10, fmt.Sprintf("saving image %s", d.ImageTag))
	saveReader, err := sourceClient.SaveImage(ctx, d.ImageTag)
	if err != nil {
		return "", err
	}
	defer saveReader.Close()

	lease.Update(progress.StageImporting, 40, "loading image on target")
	if err := targetClient.LoadImage(ctx, saveReader, nil); err != nil {
		return "", err
	}

	if lease.CancelRequested() {
		return "", cancelled(lease, 40)
	}

	targetName := d.ContainerName
	if _, err := targetClient.InspectContainer(ctx, targetName); err == nil {
		targetName = fmt.Sprintf("%s-migrated-%d", d.ContainerName, time.Now().Unix())
	}
	targetDescriptor := d
	targetDescriptor.ContainerName = targetName

	lease.Update(progress.StageCreating, 60, fmt.Sprintf("creating %s on target", targetName))
	cfg, hostCfg, netCfg := buildContainerConfig(targetDescriptor, true)
	if _, err := targetClient.CreateContainer(ctx, targetName, cfg, hostCfg, netCfg); err != nil {
		return "", err
	}

	if opts.IncludeData {
		lease.Update(progress.StageMigratingData, 70, "copying volume data")
		if err := migrateVolumesAcrossHosts(ctx, lease, sourceClient, targetClient, opts.ContainerName, targetName, d); err != nil {
			_ = targetClient.RemoveContainer(ctx, targetName, true)
			return "", err
		}
	}

	if lease.CancelRequested() {
		_ = targetClient.RemoveContainer(ctx, targetName, true)
		return "", cancelled(lease, 70)
	}

	lease.Update(progress.StageSwitching, 85, fmt.Sprintf("starting %s on target", targetName))
	if err := targetClient.StartContainer(ctx, targetName); err != nil {
		_ = targetClient.RemoveContainer(ctx, targetName, true)
		return "", err
	}

	lease.Update(progress.StageValidating, 90, "validating on target")
	p := resolveProbe(e.Health, d)
	if err := probe(ctx, p, "http://127.0.0.1"); err != nil {
		_ = targetClient.StopContainer(ctx, targetName, nil)
		_ = targetClient.RemoveContainer(ctx, targetName, true)
		return "", err
	}

	if opts.StopSource {
		lease.Update(progress.StageCleaningUp, 97, "stopping source container")
		_ = sourceClient.StopContainer(ctx, opts.ContainerName, nil)
	}

	lease.Update(progress.StageCompleted, 100, "migrated")
	return targetName, nil
}

// migrateVolumesAcrossHosts copies each named volume's contents from the
// source container (which is not stopped first) to the not-yet-started
// target container, directly through CopyFromContainer/CopyToContainer —
// both containers already mount the volume at the same path, so no
// separate ephemeral helper is needed on either side. Bind mounts with
// absolute host paths are copied the same way only if the target host
// already has that path available; otherwise, per §4.7.6 step 4, the gap
// is non-fatal and recorded as manual_action_required in the progress
// message rather than failing the migration.
func migrateVolumesAcrossHosts(ctx context.Context, lease *progress.Lease, source, target dockerclient.API, sourceContainer, targetContainer string, d descriptor.ContainerDescriptor) error {
	for _, m := range d.Volumes {
		if m.IsBindMount() {
			available, err := targetHostPathAvailable(ctx, target, m.HostPath)
			if err != nil {
				return apierrors.New("migrate", apierrors.KindVolumeCopyFailed, err)
			}
			if !available {
				lease.Update(progress.StageMigratingData, 70,
					fmt.Sprintf("manual_action_required: bind mount path %s not available on target host", m.HostPath))
				continue
			}
			rc, err := source.CopyFromContainer(ctx, sourceContainer, m.MountPath)
			if err != nil {
				return apierrors.New("migrate", apierrors.KindManualActionRequired, fmt.Errorf("bind mount %q requires manual data copy: %w", m.HostPath, err))
			}
			err = target.CopyToContainer(ctx, targetContainer, path.Dir(m.MountPath), rc)
			rc.Close()
			if err != nil {
				return apierrors.New("migrate", apierrors.KindVolumeCopyFailed, err)
			}
			continue
		}

		exists, err := target.VolumeExists(ctx, m.VolumeName)
		if err != nil {
			return apierrors.New("migrate", apierrors.KindVolumeCopyFailed, err)
		}
		if !exists {
			if err := target.CreateVolume(ctx, m.VolumeName); err != nil {
				return apierrors.New("migrate", apierrors.KindVolumeCopyFailed, err)
			}
		}

		rc, err := source.CopyFromContainer(ctx, sourceContainer, m.MountPath)
		if err != nil {
			return apierrors.New("migrate", apierrors.KindManualActionRequired, fmt.Errorf("volume %q requires manual data copy: %w", m.VolumeName, err))
		}
		err = target.CopyToContainer(ctx, targetContainer, path.Dir(m.MountPath), rc)
		rc.Close()
		if err != nil {
			return apierrors.New("migrate", apierrors.KindVolumeCopyFailed, err)
		}
	}
	return nil
}

// targetHostPathAvailable checks whether hostPath exists on target's host
// by bind-mounting it read-only into a short-lived helper container; a
// nonzero exit (path missing) is treated as unavailable rather than an
// error, so a genuinely absent path falls through to manual_action_required
// instead of failing the whole migration.
func targetHostPathAvailable(ctx context.Context, target dockerclient.API, hostPath string) (bool, error) {
	_, err := target.RunEphemeral(ctx, dockerclient.AlpineHelperImage,
		[]string{"test", "-e", "/check"},
		[]dockerclient.EphemeralMount{
			{Type: mount.TypeBind, Source: hostPath, Target: "/check", ReadOnly: true},
		})
	if err != nil {
		if apierrors.Is(err, apierrors.KindIOError) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
