package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/backup"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/healthcheck"
	"dockerpilot/internal/progress"
	"dockerpilot/internal/pubsub"
	"dockerpilot/internal/session"
)

// maxWalkTime bounds the bind-mount size estimation walk performed during
// ClassifyBackup, per §4.6's "bounded by a configurable max-walk time".
const maxWalkTime = 5 * time.Second

// Engine ties every component together behind the programmatic surface
// described in SPEC_FULL.md §6.1. It holds no business state of its own;
// Hosts, Progress, and Sessions are the three registries the rest of the
// system mutates.
type Engine struct {
	Hosts    hostregistryHandle
	Progress *progress.Registry
	Sessions *session.Store
	Health   *healthcheck.Resolver
	History  *HistoryStore

	// PubSub is the optional push channel for deployment-history
	// notifications (see WatchHistory). A nil PubSub disables the push
	// side entirely; History.Append/Last keep working either way.
	PubSub pubsub.PubSub

	configsDir string
	backupsDir string
}

// hostregistryHandle is the subset of *hostregistry.Registry the engine
// calls directly. Declared as an interface so engine tests can substitute
// a fake without spinning up real SSH transports.
type hostregistryHandle interface {
	Resolve(ctx context.Context, id string) (dockerclient.API, error)
}

// New builds an Engine from its already-constructed dependencies. Callers
// assemble Hosts/Progress/Sessions/Health/History from internal/config's
// resolved paths at process start. ps may be nil, disabling the
// deployment-history push channel entirely.
func New(hosts hostregistryHandle, progressRegistry *progress.Registry, sessions *session.Store, health *healthcheck.Resolver, history *HistoryStore, ps pubsub.PubSub, configsDir, backupsDir string) *Engine {
	return &Engine{
		Hosts:      hosts,
		Progress:   progressRegistry,
		Sessions:   sessions,
		Health:     health,
		History:    history,
		PubSub:     ps,
		configsDir: configsDir,
		backupsDir: backupsDir,
	}
}

// SetElevationSecret stores secret for sessionID, per §6.1's
// SetElevationSecret contract: in-memory only, cleared on session end.
func (e *Engine) SetElevationSecret(sessionID, secret string) {
	e.Sessions.Set(sessionID, secret)
}

// ClearElevationSecret ends a session's elevation secret early.
func (e *Engine) ClearElevationSecret(sessionID string) {
	e.Sessions.End(sessionID)
}

// Cancel requests cancellation of the operation running under key.
// Returns apierrors.KindNotFound if no such operation is live.
func (e *Engine) Cancel(containerName string) error {
	if !e.Progress.RequestCancel(containerName) {
		return apierrors.New("Cancel", apierrors.KindNotFound, fmt.Errorf("no operation running for %q", containerName))
	}
	return nil
}

// GetProgress returns one operation's record, or every active record if
// containerName is empty.
func (e *Engine) GetProgress(containerName string) ([]progress.Record, error) {
	if containerName == "" {
		return e.Progress.All(), nil
	}
	rec, ok := e.Progress.Get(containerName)
	if !ok {
		return nil, apierrors.New("GetProgress", apierrors.KindNotFound, fmt.Errorf("no operation running for %q", containerName))
	}
	return []progress.Record{rec}, nil
}

// GetMigrationProgress is GetProgress under the migration's operation key
// naming convention (the container name, same as promotion per §3).
func (e *Engine) GetMigrationProgress(containerName string) (progress.Record, error) {
	rec, ok := e.Progress.Get(containerName)
	if !ok {
		return progress.Record{}, apierrors.New("GetMigrationProgress", apierrors.KindNotFound, fmt.Errorf("no migration running for %q", containerName))
	}
	return rec, nil
}

// CancelMigration is Cancel, named per §6.1's separate migration surface.
func (e *Engine) CancelMigration(containerName string) error {
	return e.Cancel(containerName)
}

// DeploymentHistory returns the last limit journal entries, newest first.
func (e *Engine) DeploymentHistory(limit int) ([]DeploymentHistoryEntry, error) {
	return e.History.Last(limit)
}

// recordHistory appends entry to the journal and, if a PubSub was
// configured, pushes it to every WatchHistory subscriber. Append failures
// are swallowed by callers already (the journal is best-effort); the
// publish step is equally best-effort, since a dropped notification never
// loses data — Last always replays the journal itself.
func (e *Engine) recordHistory(ctx context.Context, entry DeploymentHistoryEntry) error {
	err := e.History.Append(entry)
	if e.PubSub != nil {
		_ = e.PubSub.Publish(ctx, pubsub.HistoryTopic(), entry)
	}
	return err
}

// WatchHistory subscribes to every deployment-history notification
// published after PromoteOne/Migrate reaches a terminal stage, decoding
// each one into a DeploymentHistoryEntry. ok is false if no PubSub was
// configured, in which case the caller should fall back to polling
// DeploymentHistory. The returned cleanup function must be called when
// the caller is done watching.
func (e *Engine) WatchHistory(ctx context.Context) (ch <-chan DeploymentHistoryEntry, cleanup func(), ok bool) {
	if e.PubSub == nil {
		return nil, func() {}, false
	}

	raw, unsub := e.PubSub.Subscribe(ctx, pubsub.HistoryTopic())
	out := make(chan DeploymentHistoryEntry, cap(raw))
	go func() {
		defer pubsub.RecoverSubscription("EngineHistory", unsub, out)
		for msg := range raw {
			var entry DeploymentHistoryEntry
			if err := json.Unmarshal(msg, &entry); err != nil {
				continue
			}
			out <- entry
		}
	}()
	return out, unsub, true
}

// PrepareConfig introspects containerName on hostID, transforms it for
// targetEnv, and writes the resulting descriptor to
// configs/deployment-<targetEnv>-<container>.yml, returning the written
// path.
func (e *Engine) PrepareConfig(ctx context.Context, hostID, containerName, targetEnv string) (string, error) {
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

	data, err := descriptor.ExportYAML(d)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.configsDir, 0o700); err != nil {
		return "", fmt.Errorf("engine: create configs dir: %w", err)
	}
	path := filepath.Join(e.configsDir, fmt.Sprintf("deployment-%s-%s.yml", targetEnv, containerName))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("engine: write descriptor: %w", err)
	}
	return path, nil
}

// ImportConfig reads a previously-exported descriptor file, optionally
// overriding its container name, and returns it ready for a promotion.
func (e *Engine) ImportConfig(path string, overrideContainerName string) (descriptor.ContainerDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return descriptor.ContainerDescriptor{}, apierrors.New("ImportConfig", apierrors.KindIOError, err)
	}
	d, err := descriptor.ImportYAML(data)
	if err != nil {
		return descriptor.ContainerDescriptor{}, err
	}
	if overrideContainerName != "" {
		d.ContainerName = overrideContainerName
	}
	return d, nil
}

// ClassifyBackup runs C6's pre-flight classification against
// containerName's current descriptor on hostID, per §6.1.
func (e *Engine) ClassifyBackup(ctx context.Context, hostID, containerName string) (backup.Report, error) {
	if hostID == "" {
		hostID = "local"
	}
	client, err := e.Hosts.Resolve(ctx, hostID)
	if err != nil {
		return backup.Report{}, err
	}
	defer client.Close()

	d, err := descriptor.Introspect(ctx, client, containerName)
	if err != nil {
		return backup.Report{}, err
	}

	estimator := backup.NewSizeEstimator(client)
	return backup.Classify(ctx, estimator, d, maxWalkTime), nil
}

// newBackuper builds a Backuper bound to client and this engine's backups
// directory, pulling the elevation secret for sessionID if one is set.
// Privileged-path elevation is only wired for the local daemon today; see
// LocalElevator's doc comment.
func (e *Engine) newBackuper(client dockerclient.API, sessionID string) *backup.Backuper {
	secret, _ := e.Sessions.Get(sessionID)
	b := &backup.Backuper{
		Client:          client,
		ArchiveDir:      e.backupsDir,
		ElevationSecret: secret,
	}
	if client.HostID() == "local" {
		b.Elevator = LocalElevator{}
	}
	return b
}
