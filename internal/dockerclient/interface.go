package dockerclient

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
)

// API is the subset of the Docker façade C5/C6/C7 depend on. *Client
// implements it against a real daemon; MockAPI implements it for tests,
// following the same *Func-field fake the host runtime tests use.
type API interface {
	HostID() string
	Ping(ctx context.Context) error
	Close() error

	InspectContainer(ctx context.Context, name string) (ContainerInfo, error)
	ListContainers(ctx context.Context, labelFilter map[string]string, all bool) ([]ContainerInfo, error)
	CreateContainer(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	RenameContainer(ctx context.Context, id, newName string) error

	PullImage(ctx context.Context, ref string, onProgress func(line []byte)) error
	TagImage(ctx context.Context, source, target string) error
	RemoveImage(ctx context.Context, ref string, force bool) error
	ImageInspect(ctx context.Context, ref string) (string, bool, error)
	SaveImage(ctx context.Context, refs ...string) (io.ReadCloser, error)
	LoadImage(ctx context.Context, tar io.Reader, onProgress func(line []byte)) error
	BuildImage(ctx context.Context, buildContext io.Reader, dockerfile, imageTag string, onProgress func(line []byte)) error

	InspectVolume(ctx context.Context, name string) (volume.Volume, error)
	VolumeExists(ctx context.Context, name string) (bool, error)
	CreateVolume(ctx context.Context, name string) error
	ListVolumes(ctx context.Context, nameFilter string) ([]*volume.Volume, error)

	CopyFromContainer(ctx context.Context, id, srcPath string) (io.ReadCloser, error)
	CopyToContainer(ctx context.Context, id, dstPath string, tar io.Reader) error

	ContainerStats(ctx context.Context, id string) (container.StatsResponseReader, error)

	RunEphemeral(ctx context.Context, image string, cmd []string, mounts []EphemeralMount) (EphemeralResult, error)
}

var _ API = (*Client)(nil)
