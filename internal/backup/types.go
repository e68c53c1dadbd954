// Package backup implements pre-flight classification and archive
// execution for the deployment engine's optional backup step (C6). It
// executes through the same ephemeral-helper primitive the Docker façade
// exposes for volume/bind-mount copies; the privileged path additionally
// needs an elevation secret to run a remote or local `sudo`.
package backup

import (
	"context"
	"time"
)

// Report is the pre-flight summary Classify produces for a descriptor.
type Report struct {
	RequiresSudo      bool
	TotalSizeBytes    int64
	SizeUnknown       bool
	LargeMounts       []string // mount paths/volume names flagged large
	PrivilegedPaths   []string // bind-mount host paths requiring elevation
	UnbackupablePaths []string // system paths dropped entirely
}

// largeThresholdBytes is the "large" cutoff: 500 GiB.
const largeThresholdBytes = 500 << 30

// RecordKind distinguishes a successful archive from a skipped mount.
type RecordKind string

const (
	KindArchived RecordKind = "archived"
	KindSkipped  RecordKind = "skipped"
)

// Record is the outcome of backing up one mount.
type Record struct {
	Kind        RecordKind
	Identifier  string // volume name or bind-mount host path (sanitized only in the archive name)
	ArchivePath string
	SizeBytes   int64
	SHA256      string
	CreatedAt   time.Time
	SkipReason  string
}

// Elevator runs a privileged tar command for a bind mount whose host path
// requires sudo, feeding secret over the command's stdin. The one
// implementation, engine.LocalElevator, runs the command locally via
// exec.Command; the engine attaches it only for the local host.
type Elevator interface {
	RunPrivileged(ctx context.Context, cmd []string, secret string) (stdout, stderr string, exitCode int, err error)
}
