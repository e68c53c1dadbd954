package descriptor

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockerpilot/internal/dockerclient"
)

func TestIntrospectBuildsDescriptorFromInspectResponse(t *testing.T) {
	resp := container.InspectResponse{
		Config: &container.Config{
			Image: "grafana/grafana:10.4.0",
			Env:   []string{"GF_LOG_LEVEL=info"},
			Cmd:   []string{"grafana-server"},
		},
		HostConfig: &container.HostConfig{
			RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
			PortBindings: nat.PortMap{
				"3000/tcp": []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "3000"}},
			},
		},
	}

	api := &dockerclient.MockAPI{
		InspectContainerFunc: func(ctx context.Context, name string) (dockerclient.ContainerInfo, error) {
			return dockerclient.ContainerInfo{
				Name:   "grafana",
				Image:  "grafana/grafana:10.4.0",
				Labels: map[string]string{"app": "grafana"},
				Raw:    resp,
			}, nil
		},
	}

	d, err := Introspect(context.Background(), api, "grafana")
	require.NoError(t, err)

	assert.Equal(t, "grafana", d.ContainerName)
	assert.Equal(t, "grafana/grafana:10.4.0", d.ImageTag)
	assert.Equal(t, []string{"GF_LOG_LEVEL=info"}, d.Environment)
	assert.Equal(t, "unless-stopped", d.RestartPolicy)
	assert.Equal(t, map[string]string{"3000/tcp": "3000"}, d.PortBindings)
}

func TestIntrospectPropagatesInspectError(t *testing.T) {
	api := &dockerclient.MockAPI{
		InspectContainerFunc: func(ctx context.Context, name string) (dockerclient.ContainerInfo, error) {
			return dockerclient.ContainerInfo{}, errors.New("inspect failed")
		},
	}

	_, err := Introspect(context.Background(), api, "missing")
	assert.Error(t, err)
}
