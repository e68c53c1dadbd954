package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/mount"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
)

// Backuper executes the archive step of C6 against one client, writing
// archives under archiveDir.
type Backuper struct {
	Client dockerclient.API

	// Elevator and ElevationSecret are both required for a privileged
	// bind mount; either missing fails that mount with
	// apierrors.KindElevationRequired.
	Elevator        Elevator
	ElevationSecret string

	ArchiveDir string
}

// Backup produces a Record for mount m, using operationKey as the archive
// name prefix (`<operationKey>-<mount>.tar.gz`). All archives are
// idempotent by name: re-running the same operation overwrites.
func (b *Backuper) Backup(ctx context.Context, operationKey string, m descriptor.MountSpec) (Record, error) {
	if m.IsBindMount() && descriptor.IsSystemPath(m.HostPath) {
		return Record{
			Kind:       KindSkipped,
			Identifier: m.HostPath,
			SkipReason: "system path is not backupable",
			CreatedAt:  time.Now(),
		}, nil
	}

	identifier := mountLabel(m)
	archiveName := fmt.Sprintf("%s-%s.tar.gz", operationKey, sanitizeIdentifier(identifier))
	archivePath := filepath.Join(b.ArchiveDir, archiveName)

	if err := os.MkdirAll(b.ArchiveDir, 0o700); err != nil {
		return Record{}, apierrors.New("Backup", apierrors.KindIOError, err)
	}

	var err error
	switch {
	case !m.IsBindMount():
		err = b.backupViaHelper(ctx, m.VolumeName, false, archiveName)
	case !m.Privileged:
		err = b.backupViaHelper(ctx, m.HostPath, true, archiveName)
	default:
		err = b.backupPrivileged(ctx, m.HostPath, archiveName)
	}
	if err != nil {
		return Record{}, err
	}

	sum, size, err := hashAndSize(archivePath)
	if err != nil {
		return Record{}, apierrors.New("Backup", apierrors.KindIOError, err)
	}

	return Record{
		Kind:        KindArchived,
		Identifier:  identifier,
		ArchivePath: archivePath,
		SizeBytes:   size,
		SHA256:      sum,
		CreatedAt:   time.Now(),
	}, nil
}

// backupViaHelper runs the alpine-class ephemeral helper: the source
// (volume or bind-mount host path) is mounted read-only at /volume,
// archiveDir at /backup, and the helper tars /volume into the named
// archive before chown-ing it to the invoking uid/gid.
func (b *Backuper) backupViaHelper(ctx context.Context, source string, isBind bool, archiveName string) error {
	mountType := mount.TypeVolume
	if isBind {
		mountType = mount.TypeBind
	}

	uid, gid := currentUIDGID()
	cmd := []string{"sh", "-c", fmt.Sprintf(
		"tar -czf /backup/%s -C /volume . && chown %d:%d /backup/%s",
		archiveName, uid, gid, archiveName,
	)}

	result, err := b.Client.RunEphemeral(ctx, dockerclient.AlpineHelperImage, cmd, []dockerclient.EphemeralMount{
		{Type: mountType, Source: source, Target: "/volume", ReadOnly: true},
		{Type: mount.TypeBind, Source: b.ArchiveDir, Target: "/backup"},
	})
	if err != nil {
		return apierrors.New("Backup", apierrors.KindBackupFailed, err)
	}
	if result.ExitCode != 0 {
		return apierrors.New("Backup", apierrors.KindBackupFailed, fmt.Errorf("helper exited %d: %s", result.ExitCode, result.Stderr))
	}
	return nil
}

// backupPrivileged tars a privileged bind mount via sudo, feeding the
// elevation secret over stdin. Fails typed elevation_required if no
// Elevator/secret is available.
func (b *Backuper) backupPrivileged(ctx context.Context, hostPath, archiveName string) error {
	if b.Elevator == nil || b.ElevationSecret == "" {
		return apierrors.New("Backup", apierrors.KindElevationRequired, fmt.Errorf("no elevation secret available"))
	}

	archivePath := filepath.Join(b.ArchiveDir, archiveName)
	uid, gid := currentUIDGID()
	cmd := []string{"sh", "-c", fmt.Sprintf(
		"sudo -S tar -czf %s -C %s . && sudo chown %d:%d %s",
		archivePath, hostPath, uid, gid, archivePath,
	)}

	_, stderr, exitCode, err := b.Elevator.RunPrivileged(ctx, cmd, b.ElevationSecret)
	if err != nil {
		return apierrors.New("Backup", apierrors.KindElevationRequired, err)
	}
	if exitCode != 0 {
		return apierrors.New("Backup", apierrors.KindBackupFailed, fmt.Errorf("privileged tar exited %d: %s", exitCode, stderr))
	}
	return nil
}

func hashAndSize(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	written, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), written, nil
}

func sanitizeIdentifier(id string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_")
	return strings.Trim(replacer.Replace(id), "_")
}

func currentUIDGID() (int, int) {
	u, err := user.Current()
	if err != nil {
		return 0, 0
	}
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)
	return uid, gid
}
