package descriptor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/dockerclient"
)

// Introspect reads a container's full inspection data through client and
// derives a ContainerDescriptor in full fidelity: original port bindings,
// env order, labels, restart policy, and mount list are all preserved.
// HealthcheckEndpoint is left nil; callers resolve it separately via the
// health-check resolver.
func Introspect(ctx context.Context, client dockerclient.API, containerName string) (ContainerDescriptor, error) {
	info, err := client.InspectContainer(ctx, containerName)
	if err != nil {
		return ContainerDescriptor{}, err
	}

	resp, ok := info.Raw.(container.InspectResponse)
	if !ok {
		return ContainerDescriptor{}, apierrors.New("Introspect", apierrors.KindInvalidDescriptor,
			fmt.Errorf("unexpected inspect payload type for %s", containerName))
	}

	d := ContainerDescriptor{
		ContainerName: info.Name,
		ImageTag:      info.Image,
		Labels:        info.Labels,
	}

	if resp.Config != nil {
		d.Command = []string(resp.Config.Cmd)
		d.Entrypoint = []string(resp.Config.Entrypoint)
		d.Environment = resp.Config.Env
	}

	if resp.HostConfig != nil {
		d.RestartPolicy = string(resp.HostConfig.RestartPolicy.Name)
		if resp.HostConfig.NanoCPUs > 0 {
			d.CPULimit = strconv.FormatFloat(float64(resp.HostConfig.NanoCPUs)/1e9, 'f', -1, 64)
		}
		if resp.HostConfig.Memory > 0 {
			d.MemoryLimit = strconv.FormatInt(resp.HostConfig.Memory, 10)
		}
		d.PortBindings = flattenPortBindings(resp.HostConfig.PortBindings)
	}

	if resp.NetworkSettings != nil {
		for name := range resp.NetworkSettings.Networks {
			d.Networks = append(d.Networks, name)
		}
	}

	for _, m := range resp.Mounts {
		d.Volumes = append(d.Volumes, mountSpecFromMountPoint(m))
	}

	return d, nil
}

func flattenPortBindings(bindings nat.PortMap) map[string]string {
	if len(bindings) == 0 {
		return nil
	}
	out := make(map[string]string, len(bindings))
	for containerPort, hostBindings := range bindings {
		if len(hostBindings) == 0 {
			continue
		}
		out[string(containerPort)] = hostBindings[0].HostPort
	}
	return out
}

func mountSpecFromMountPoint(m container.MountPoint) MountSpec {
	spec := MountSpec{
		MountPath: m.Destination,
		ReadOnly:  !m.RW,
	}
	if m.Type == mount.TypeVolume {
		spec.VolumeName = m.Name
	} else {
		spec.HostPath = m.Source
		spec.Privileged = IsSystemPath(m.Source)
	}
	return spec
}
