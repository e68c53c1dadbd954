package engine

import (
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"dockerpilot/internal/descriptor"
)

// buildContainerConfig translates a ContainerDescriptor into the three
// config objects dockerclient.API.CreateContainer expects. bindPorts
// controls whether PortBindings is honored (false leaves ports unbound,
// used by rolling/blue-green while a new container is still only
// reachable for probing).
func buildContainerConfig(d descriptor.ContainerDescriptor, bindPorts bool) (*container.Config, *container.HostConfig, *network.NetworkingConfig) {
	exposedPorts := make(nat.PortSet, len(d.PortBindings))
	portMap := make(nat.PortMap, len(d.PortBindings))
	for containerPort, hostPort := range d.PortBindings {
		port := nat.Port(containerPort)
		exposedPorts[port] = struct{}{}
		if bindPorts {
			portMap[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
		}
	}

	var mounts []mount.Mount
	for _, m := range d.Volumes {
		if m.IsBindMount() {
			mounts = append(mounts, mount.Mount{
				Type: mount.TypeBind, Source: m.HostPath, Target: m.MountPath, ReadOnly: m.ReadOnly,
			})
		} else {
			mounts = append(mounts, mount.Mount{
				Type: mount.TypeVolume, Source: m.VolumeName, Target: m.MountPath, ReadOnly: m.ReadOnly,
			})
		}
	}

	cfg := &container.Config{
		Image:        d.ImageTag,
		Cmd:          d.Command,
		Entrypoint:   d.Entrypoint,
		Env:          d.Environment,
		Labels:       d.Labels,
		ExposedPorts: exposedPorts,
	}

	hostCfg := &container.HostConfig{
		Mounts:        mounts,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyMode(d.RestartPolicy)},
	}
	if bindPorts {
		hostCfg.PortBindings = portMap
	}
	if nanoCPUs, ok := parseCPULimit(d.CPULimit); ok {
		hostCfg.Resources.NanoCPUs = nanoCPUs
	}
	if memBytes, ok := parseMemoryLimit(d.MemoryLimit); ok {
		hostCfg.Resources.Memory = memBytes
	}

	var netCfg *network.NetworkingConfig
	if len(d.Networks) > 0 {
		endpoints := make(map[string]*network.EndpointSettings, len(d.Networks))
		for _, name := range d.Networks {
			endpoints[name] = &network.EndpointSettings{}
		}
		netCfg = &network.NetworkingConfig{EndpointsConfig: endpoints}
	}

	return cfg, hostCfg, netCfg
}

// parseCPULimit converts a descriptor's "1.5"-style CPU core count into
// NanoCPUs (1e9 per core), the unit the Docker API expects.
func parseCPULimit(cpu string) (int64, bool) {
	v, err := strconv.ParseFloat(cpu, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int64(v * 1e9), true
}

// parseMemoryLimit converts a descriptor's "512Mi"/"2Gi"/"512M"/"2G" style
// memory limit, or a bare byte count, into bytes.
func parseMemoryLimit(mem string) (int64, bool) {
	mem = strings.TrimSpace(mem)
	if mem == "" {
		return 0, false
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(mem, "Gi"):
		multiplier = 1 << 30
		mem = strings.TrimSuffix(mem, "Gi")
	case strings.HasSuffix(mem, "Mi"):
		multiplier = 1 << 20
		mem = strings.TrimSuffix(mem, "Mi")
	case strings.HasSuffix(mem, "G"):
		multiplier = 1e9
		mem = strings.TrimSuffix(mem, "G")
	case strings.HasSuffix(mem, "M"):
		multiplier = 1e6
		mem = strings.TrimSuffix(mem, "M")
	}

	v, err := strconv.ParseFloat(mem, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int64(v * float64(multiplier)), true
}
