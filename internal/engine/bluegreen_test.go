package engine

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/stretchr/testify/require"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/healthcheck"
	"dockerpilot/internal/progress"
)

func TestBlueGreenDeployPicksOppositeColorAndSwitches(t *testing.T) {
	client := &dockerclient.MockAPI{}
	client.InspectContainerFunc = func(ctx context.Context, name string) (dockerclient.ContainerInfo, error) {
		if name == "myapp" {
			return dockerclient.ContainerInfo{Labels: map[string]string{colorLabel: colorBlue}}, nil
		}
		return dockerclient.ContainerInfo{}, apierrors.New("InspectContainer", apierrors.KindNotFound, nil)
	}
	client.BuildImageFunc = func(ctx context.Context, buildContext io.Reader, dockerfile, imageTag string, onProgress func([]byte)) error {
		return nil
	}
	var created []string
	client.CreateContainerFunc = func(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
		created = append(created, name)
		return "id-" + name, nil
	}

	e := &Engine{Health: &healthcheck.Resolver{}}
	reg := progress.NewRegistry(nil)
	e.Progress = reg
	lease, err := reg.Acquire("myapp")
	require.NoError(t, err)

	d := descriptorForTest("myapp")
	d.HealthcheckEndpoint = strPtr("")

	tag, err := blueGreenDeploy(context.Background(), e, lease, client, d, PromoteOptions{DockerfilePath: testDockerfile(t)})
	require.NoError(t, err)
	require.Equal(t, d.ImageTag, tag)
	require.Contains(t, created, "myapp-green")
}

// TestBlueGreenDeployCopiesDBConfigFromOldToNewContainer exercises a
// recognized database family image and asserts the config subtree is
// copied from the still-live old container to the newly created color
// container, not back into itself.
func TestBlueGreenDeployCopiesDBConfigFromOldToNewContainer(t *testing.T) {
	client := &dockerclient.MockAPI{}
	client.InspectContainerFunc = func(ctx context.Context, name string) (dockerclient.ContainerInfo, error) {
		if name == "mydb" {
			return dockerclient.ContainerInfo{
				Labels: map[string]string{colorLabel: colorBlue},
				Raw: container.InspectResponse{
					Config:     &container.Config{Image: "mydb:latest"},
					HostConfig: &container.HostConfig{},
					Mounts: []container.MountPoint{
						{Type: "volume", Name: "mydb-data", Destination: "/var/lib/postgresql/data", RW: true},
					},
				},
			}, nil
		}
		return dockerclient.ContainerInfo{}, apierrors.New("InspectContainer", apierrors.KindNotFound, nil)
	}
	client.BuildImageFunc = func(ctx context.Context, buildContext io.Reader, dockerfile, imageTag string, onProgress func([]byte)) error {
		return nil
	}
	client.CreateContainerFunc = func(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
		return "id-" + name, nil
	}
	var copiedFrom, copiedTo string
	client.CopyFromContainerFunc = func(ctx context.Context, id, srcPath string) (io.ReadCloser, error) {
		copiedFrom = id
		require.Equal(t, "/var/lib/postgresql/data/", srcPath)
		return io.NopCloser(bytes.NewReader([]byte("fake-config-tar"))), nil
	}
	client.CopyToContainerFunc = func(ctx context.Context, id, dstPath string, tar io.Reader) error {
		copiedTo = id
		return nil
	}

	e := &Engine{Health: &healthcheck.Resolver{}}
	reg := progress.NewRegistry(nil)
	e.Progress = reg
	lease, err := reg.Acquire("mydb")
	require.NoError(t, err)

	d := descriptorForTest("mydb")
	d.ImageTag = "postgres:16"
	d.HealthcheckEndpoint = strPtr("")
	d.Volumes = []descriptor.MountSpec{{VolumeName: "mydb-data", MountPath: "/var/lib/postgresql/data"}}

	_, err = blueGreenDeploy(context.Background(), e, lease, client, d, PromoteOptions{DockerfilePath: testDockerfile(t)})
	require.NoError(t, err)
	require.Equal(t, "mydb", copiedFrom)
	require.Equal(t, "mydb-green", copiedTo)
}
