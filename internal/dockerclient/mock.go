package dockerclient

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
)

// MockAPI is a hand-rolled test double for API: each method falls back to a
// zero-value-ish default when its *Func field is nil, the same pattern the
// Docker runtime's MockRuntime uses.
type MockAPI struct {
	HostIDFunc           func() string
	PingFunc             func(ctx context.Context) error
	CloseFunc            func() error
	InspectContainerFunc func(ctx context.Context, name string) (ContainerInfo, error)
	ListContainersFunc   func(ctx context.Context, labelFilter map[string]string, all bool) ([]ContainerInfo, error)
	CreateContainerFunc  func(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error)
	StartContainerFunc   func(ctx context.Context, id string) error
	StopContainerFunc    func(ctx context.Context, id string, timeout *time.Duration) error
	RemoveContainerFunc  func(ctx context.Context, id string, force bool) error
	RenameContainerFunc  func(ctx context.Context, id, newName string) error
	PullImageFunc        func(ctx context.Context, ref string, onProgress func(line []byte)) error
	TagImageFunc         func(ctx context.Context, source, target string) error
	RemoveImageFunc      func(ctx context.Context, ref string, force bool) error
	ImageInspectFunc     func(ctx context.Context, ref string) (string, bool, error)
	SaveImageFunc        func(ctx context.Context, refs ...string) (io.ReadCloser, error)
	LoadImageFunc        func(ctx context.Context, tar io.Reader, onProgress func(line []byte)) error
	BuildImageFunc       func(ctx context.Context, buildContext io.Reader, dockerfile, imageTag string, onProgress func(line []byte)) error
	InspectVolumeFunc    func(ctx context.Context, name string) (volume.Volume, error)
	VolumeExistsFunc     func(ctx context.Context, name string) (bool, error)
	CreateVolumeFunc     func(ctx context.Context, name string) error
	ListVolumesFunc      func(ctx context.Context, nameFilter string) ([]*volume.Volume, error)
	CopyFromContainerFunc func(ctx context.Context, id, srcPath string) (io.ReadCloser, error)
	CopyToContainerFunc   func(ctx context.Context, id, dstPath string, tar io.Reader) error
	ContainerStatsFunc    func(ctx context.Context, id string) (container.StatsResponseReader, error)
	RunEphemeralFunc      func(ctx context.Context, image string, cmd []string, mounts []EphemeralMount) (EphemeralResult, error)
}

var _ API = (*MockAPI)(nil)

func (m *MockAPI) HostID() string {
	if m.HostIDFunc != nil {
		return m.HostIDFunc()
	}
	return "mock"
}

func (m *MockAPI) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockAPI) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockAPI) InspectContainer(ctx context.Context, name string) (ContainerInfo, error) {
	if m.InspectContainerFunc != nil {
		return m.InspectContainerFunc(ctx, name)
	}
	return ContainerInfo{Name: name}, nil
}

func (m *MockAPI) ListContainers(ctx context.Context, labelFilter map[string]string, all bool) ([]ContainerInfo, error) {
	if m.ListContainersFunc != nil {
		return m.ListContainersFunc(ctx, labelFilter, all)
	}
	return nil, nil
}

func (m *MockAPI) CreateContainer(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	if m.CreateContainerFunc != nil {
		return m.CreateContainerFunc(ctx, name, cfg, hostCfg, netCfg)
	}
	return "mock-id", nil
}

func (m *MockAPI) StartContainer(ctx context.Context, id string) error {
	if m.StartContainerFunc != nil {
		return m.StartContainerFunc(ctx, id)
	}
	return nil
}

func (m *MockAPI) StopContainer(ctx context.Context, id string, timeout *time.Duration) error {
	if m.StopContainerFunc != nil {
		return m.StopContainerFunc(ctx, id, timeout)
	}
	return nil
}

func (m *MockAPI) RemoveContainer(ctx context.Context, id string, force bool) error {
	if m.RemoveContainerFunc != nil {
		return m.RemoveContainerFunc(ctx, id, force)
	}
	return nil
}

func (m *MockAPI) RenameContainer(ctx context.Context, id, newName string) error {
	if m.RenameContainerFunc != nil {
		return m.RenameContainerFunc(ctx, id, newName)
	}
	return nil
}

func (m *MockAPI) PullImage(ctx context.Context, ref string, onProgress func(line []byte)) error {
	if m.PullImageFunc != nil {
		return m.PullImageFunc(ctx, ref, onProgress)
	}
	return nil
}

func (m *MockAPI) TagImage(ctx context.Context, source, target string) error {
	if m.TagImageFunc != nil {
		return m.TagImageFunc(ctx, source, target)
	}
	return nil
}

func (m *MockAPI) RemoveImage(ctx context.Context, ref string, force bool) error {
	if m.RemoveImageFunc != nil {
		return m.RemoveImageFunc(ctx, ref, force)
	}
	return nil
}

func (m *MockAPI) ImageInspect(ctx context.Context, ref string) (string, bool, error) {
	if m.ImageInspectFunc != nil {
		return m.ImageInspectFunc(ctx, ref)
	}
	return "", false, nil
}

func (m *MockAPI) SaveImage(ctx context.Context, refs ...string) (io.ReadCloser, error) {
	if m.SaveImageFunc != nil {
		return m.SaveImageFunc(ctx, refs...)
	}
	return io.NopCloser(nil), nil
}

func (m *MockAPI) LoadImage(ctx context.Context, tar io.Reader, onProgress func(line []byte)) error {
	if m.LoadImageFunc != nil {
		return m.LoadImageFunc(ctx, tar, onProgress)
	}
	return nil
}

func (m *MockAPI) BuildImage(ctx context.Context, buildContext io.Reader, dockerfile, imageTag string, onProgress func(line []byte)) error {
	if m.BuildImageFunc != nil {
		return m.BuildImageFunc(ctx, buildContext, dockerfile, imageTag, onProgress)
	}
	return nil
}

func (m *MockAPI) InspectVolume(ctx context.Context, name string) (volume.Volume, error) {
	if m.InspectVolumeFunc != nil {
		return m.InspectVolumeFunc(ctx, name)
	}
	return volume.Volume{Name: name}, nil
}

func (m *MockAPI) VolumeExists(ctx context.Context, name string) (bool, error) {
	if m.VolumeExistsFunc != nil {
		return m.VolumeExistsFunc(ctx, name)
	}
	return false, nil
}

func (m *MockAPI) CreateVolume(ctx context.Context, name string) error {
	if m.CreateVolumeFunc != nil {
		return m.CreateVolumeFunc(ctx, name)
	}
	return nil
}

func (m *MockAPI) ListVolumes(ctx context.Context, nameFilter string) ([]*volume.Volume, error) {
	if m.ListVolumesFunc != nil {
		return m.ListVolumesFunc(ctx, nameFilter)
	}
	return nil, nil
}

func (m *MockAPI) CopyFromContainer(ctx context.Context, id, srcPath string) (io.ReadCloser, error) {
	if m.CopyFromContainerFunc != nil {
		return m.CopyFromContainerFunc(ctx, id, srcPath)
	}
	return io.NopCloser(nil), nil
}

func (m *MockAPI) CopyToContainer(ctx context.Context, id, dstPath string, tar io.Reader) error {
	if m.CopyToContainerFunc != nil {
		return m.CopyToContainerFunc(ctx, id, dstPath, tar)
	}
	return nil
}

func (m *MockAPI) ContainerStats(ctx context.Context, id string) (container.StatsResponseReader, error) {
	if m.ContainerStatsFunc != nil {
		return m.ContainerStatsFunc(ctx, id)
	}
	return container.StatsResponseReader{Body: io.NopCloser(nil)}, nil
}

func (m *MockAPI) RunEphemeral(ctx context.Context, image string, cmd []string, mounts []EphemeralMount) (EphemeralResult, error) {
	if m.RunEphemeralFunc != nil {
		return m.RunEphemeralFunc(ctx, image, cmd, mounts)
	}
	return EphemeralResult{}, nil
}
