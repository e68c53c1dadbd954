package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/backup"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/progress"
)

// strategyFunc is the shape every deployment strategy conforms to: it
// receives an already-acquired lease and a resolved client, drives its
// own stage transitions, and returns the image tag actually running on
// success.
type strategyFunc func(ctx context.Context, e *Engine, lease *progress.Lease, client dockerclient.API, d descriptor.ContainerDescriptor, opts PromoteOptions) (string, error)

var strategies = map[Strategy]strategyFunc{
	StrategyQuick:     quickDeploy,
	StrategyRolling:   rollingDeploy,
	StrategyBlueGreen: blueGreenDeploy,
	StrategyCanary:    canaryDeploy,
}

// defaultStrategyForEnv maps targetEnv to the strategy a promotion uses
// when the caller doesn't name one explicitly: quick for dev, rolling for
// staging, blue-green for prod, per the glossary's "a strategy appropriate
// to that env" default. An unrecognized env falls back to quick, the
// lowest-risk choice.
func defaultStrategyForEnv(targetEnv string) Strategy {
	switch targetEnv {
	case "staging":
		return StrategyRolling
	case "prod":
		return StrategyBlueGreen
	default:
		return StrategyQuick
	}
}

// PromoteOne implements §4.7.1's common framework for a single container:
// acquire the lease synchronously (so already_running surfaces to the
// caller immediately per invariant 3), then run the rest of the
// transition asynchronously and poll via GetProgress.
func (e *Engine) PromoteOne(ctx context.Context, containerName, targetEnv string, opts PromoteOptions) error {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = defaultStrategyForEnv(targetEnv)
	}
	if _, ok := strategies[strategy]; !ok {
		return apierrors.New("PromoteOne", apierrors.KindInvalidDescriptor, fmt.Errorf("unknown strategy %q", strategy))
	}
	opts.Strategy = strategy

	lease, err := e.Progress.Acquire(containerName)
	if err != nil {
		return err
	}

	go e.runPromotion(lease, containerName, targetEnv, opts)
	return nil
}

// PromoteAll promotes every container on opts.HostID whose name carries
// fromEnv's profile suffix (or, for prod's empty suffix, every container
// NOT carrying a dev/staging suffix) to toEnv, one PromoteOne per
// container. Containers already mid-operation are skipped rather than
// failing the whole batch.
func (e *Engine) PromoteAll(ctx context.Context, fromEnv, toEnv string, opts PromoteOptions) ([]string, error) {
	fromProfile, ok := descriptor.Profiles[fromEnv]
	if !ok {
		return nil, apierrors.New("PromoteAll", apierrors.KindInvalidDescriptor, fmt.Errorf("unknown environment %q", fromEnv))
	}

	hostID := opts.HostID
	if hostID == "" {
		hostID = "local"
	}
	client, err := e.Hosts.Resolve(ctx, hostID)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	infos, err := client.ListContainers(ctx, nil, true)
	if err != nil {
		return nil, err
	}

	var started []string
	for _, info := range infos {
		if !matchesProfile(info.Name, fromProfile) {
			continue
		}
		if err := e.PromoteOne(ctx, info.Name, toEnv, opts); err != nil {
			if apierrors.Is(err, apierrors.KindAlreadyRunning) {
				continue
			}
			return started, err
		}
		started = append(started, info.Name)
	}
	return started, nil
}

// matchesProfile reports whether name belongs to profile's environment.
// prod's suffix is empty, so it matches anything NOT carrying one of the
// other known suffixes rather than matching unconditionally.
func matchesProfile(name string, profile descriptor.EnvironmentProfile) bool {
	if profile.Suffix != "" {
		return strings.HasSuffix(name, profile.Suffix)
	}
	for _, other := range descriptor.Profiles {
		if other.Suffix != "" && strings.HasSuffix(name, other.Suffix) {
			return false
		}
	}
	return true
}

// runPromotion is the async continuation of PromoteOne, running the rest
// of §4.7.1's common framework after the lease is already held.
func (e *Engine) runPromotion(lease *progress.Lease, containerName, targetEnv string, opts PromoteOptions) {
	ctx := context.Background()
	started := time.Now()

	imageTag, err := e.drivePromotion(ctx, lease, containerName, targetEnv, opts)

	entry := DeploymentHistoryEntry{
		Timestamp:     started,
		Strategy:      opts.Strategy,
		ImageTag:      imageTag,
		ContainerName: containerName,
		DurationMS:    time.Since(started).Milliseconds(),
	}
	switch {
	case err == errCancelled:
		entry.Status = "cancelled"
	case err != nil:
		entry.Status = "failed"
		entry.Output = err.Error()
		// A strategy that fails before its own terminal stage update
		// (e.g. a resolve/introspect error) would otherwise leave the
		// lease held forever; write the terminal record here so the
		// registry's eviction grace window always fires.
		if rec, ok := e.Progress.Get(containerName); ok && !rec.Stage.IsTerminal() {
			lease.Update(progress.StageFailed, rec.Progress, err.Error())
		}
	default:
		entry.Status = "completed"
	}
	_ = e.recordHistory(ctx, entry)
}

func (e *Engine) drivePromotion(ctx context.Context, lease *progress.Lease, containerName, targetEnv string, opts PromoteOptions) (string, error) {
	hostID := opts.HostID
	if hostID == "" {
		hostID = "local"
	}
	client, err := e.Hosts.Resolve(ctx, hostID)
	if err != nil {
		return "", err
	}
	defer client.Close()

	d, err := descriptor.Introspect(ctx, client, containerName)
	if err != nil {
		return "", err
	}
	d, err = descriptor.Transform(d, targetEnv)
	if err != nil {
		return "", err
	}

	if lease.CancelRequested() {
		return "", cancelled(lease, 0)
	}

	if !opts.SkipBackup {
		if err := e.runBackupStep(ctx, lease, client, containerName, d, opts); err != nil {
			return "", err
		}
	}

	strategy := strategies[opts.Strategy]
	return strategy(ctx, e, lease, client, d, opts)
}

// runBackupStep classifies and, for every backupable mount, archives the
// container's current volumes/bind-mounts before the strategy touches
// anything. A mount requiring elevation with no secret set fails the
// whole promotion with elevation_required per scenario S4, before any
// data moves.
func (e *Engine) runBackupStep(ctx context.Context, lease *progress.Lease, client dockerclient.API, operationKey string, d descriptor.ContainerDescriptor, opts PromoteOptions) error {
	estimator := backup.NewSizeEstimator(client)
	report := backup.Classify(ctx, estimator, d, maxWalkTime)
	if len(report.UnbackupablePaths) == len(d.Volumes) {
		return nil // nothing backupable at all, skip the stage entirely
	}

	lease.Update(progress.StageBackingUp, 5, "backing up current state")
	backuper := e.newBackuper(client, opts.SessionID)
	if report.RequiresSudo && (backuper.Elevator == nil || backuper.ElevationSecret == "") {
		return apierrors.New("runBackupStep", apierrors.KindElevationRequired, fmt.Errorf("privileged mount requires an elevation secret"))
	}

	for _, m := range d.Volumes {
		if _, err := backuper.Backup(ctx, operationKey, m); err != nil {
			return err
		}
	}
	return nil
}
