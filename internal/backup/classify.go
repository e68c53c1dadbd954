package backup

import (
	"context"
	"os"
	"time"

	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
)

// SizeEstimator estimates the on-disk size of a mount, bounded by
// maxWalk; it returns sizeUnknown=true if the estimate could not
// complete within that bound (stat-walking a bind mount, or asking the
// daemon for a volume's size).
type SizeEstimator interface {
	EstimateSize(ctx context.Context, mount descriptor.MountSpec, maxWalk time.Duration) (sizeBytes int64, sizeUnknown bool)
}

// dockerDaemonEstimator sizes named volumes via the daemon and bind
// mounts via a local stat-walk, per the pre-flight contract.
type dockerDaemonEstimator struct {
	client dockerclient.API
}

// NewSizeEstimator returns the default SizeEstimator backed by client.
func NewSizeEstimator(client dockerclient.API) SizeEstimator {
	return &dockerDaemonEstimator{client: client}
}

func (e *dockerDaemonEstimator) EstimateSize(ctx context.Context, m descriptor.MountSpec, maxWalk time.Duration) (int64, bool) {
	deadline := time.Now().Add(maxWalk)

	if !m.IsBindMount() {
		vol, err := e.client.InspectVolume(ctx, m.VolumeName)
		if err != nil || vol.UsageData == nil {
			return 0, true
		}
		return vol.UsageData.Size, false
	}

	var total int64
	unknown := false
	_ = walk(m.HostPath, deadline, func(size int64) {
		total += size
	}, &unknown)
	return total, unknown
}

// walk is a bounded directory-size accumulator; it stops (and reports
// unknown) once deadline passes rather than blocking indefinitely on a
// pathological tree.
func walk(root string, deadline time.Time, add func(int64), unknown *bool) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		*unknown = true
		return err
	}
	for _, entry := range entries {
		if time.Now().After(deadline) {
			*unknown = true
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if entry.IsDir() {
			_ = walk(root+"/"+entry.Name(), deadline, add, unknown)
			continue
		}
		add(info.Size())
	}
	return nil
}

// Classify produces the pre-flight report for d: which mounts require
// elevation, which are unbackupable system paths, and a total size
// estimate used for the caller's large-backup warning.
func Classify(ctx context.Context, estimator SizeEstimator, d descriptor.ContainerDescriptor, maxWalk time.Duration) Report {
	var report Report

	for _, m := range d.Volumes {
		if m.IsBindMount() && descriptor.IsSystemPath(m.HostPath) {
			report.UnbackupablePaths = append(report.UnbackupablePaths, m.HostPath)
			continue
		}
		if m.IsBindMount() && m.Privileged {
			report.RequiresSudo = true
			report.PrivilegedPaths = append(report.PrivilegedPaths, m.HostPath)
		}

		size, unknown := estimator.EstimateSize(ctx, m, maxWalk)
		report.TotalSizeBytes += size
		if unknown {
			report.SizeUnknown = true
		}
		if unknown || size >= largeThresholdBytes {
			report.LargeMounts = append(report.LargeMounts, mountLabel(m))
		}
	}

	return report
}

func mountLabel(m descriptor.MountSpec) string {
	if m.IsBindMount() {
		return m.HostPath
	}
	return m.VolumeName
}
