package dockerclient

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
)

// ContainerInfo is the subset of container.InspectResponse the rest of the
// system consumes, kept stable across moby SDK versions.
type ContainerInfo struct {
	ID           string
	Name         string
	Image        string
	State        string
	Running      bool
	RestartCount int
	StartedAt    string
	Labels       map[string]string
	Raw          interface{} // original container.InspectResponse value (InspectContainer) or list entry (ListContainers), for callers that need full fidelity
}

// InspectContainer returns full inspection data for name (container name or
// id), used by the introspector (C5) to build a ContainerDescriptor.
func (c *Client) InspectContainer(ctx context.Context, name string) (ContainerInfo, error) {
	resp, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		return ContainerInfo{}, mapDaemonError("InspectContainer", err)
	}
	info := ContainerInfo{
		ID:     resp.ID,
		Name:   resp.Name,
		Image:  resp.Config.Image,
		Labels: resp.Config.Labels,
		Raw:    resp,
	}
	if resp.State != nil {
		info.State = resp.State.Status
		info.Running = resp.State.Running
		info.RestartCount = resp.RestartCount
		info.StartedAt = resp.State.StartedAt
	}
	return info, nil
}

// ListContainers lists containers, optionally filtered by label.
func (c *Client) ListContainers(ctx context.Context, labelFilter map[string]string, all bool) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	for k, v := range labelFilter {
		f.Add("label", k+"="+v)
	}
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: all, Filters: f})
	if err != nil {
		return nil, mapDaemonError("ListContainers", err)
	}

	out := make([]ContainerInfo, 0, len(list))
	for _, item := range list {
		name := ""
		if len(item.Names) > 0 {
			name = item.Names[0]
		}
		out = append(out, ContainerInfo{
			ID:      item.ID,
			Name:    name,
			Image:   item.Image,
			State:   item.State,
			Running: item.State == "running",
			Labels:  item.Labels,
			Raw:     item,
		})
	}
	return out, nil
}

// CreateContainer creates (but does not start) a container.
func (c *Client) CreateContainer(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return "", mapDaemonError("CreateContainer", err)
	}
	return resp.ID, nil
}

// StartContainer starts a previously created container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return mapDaemonError("StartContainer", err)
	}
	return nil
}

// StopContainer stops a container, giving it timeout to exit gracefully
// before SIGKILL. A nil timeout uses defaultStopTimeout (30s).
func (c *Client) StopContainer(ctx context.Context, id string, timeout *time.Duration) error {
	opts := container.StopOptions{}
	if timeout != nil {
		secs := int(timeout.Seconds())
		opts.Timeout = &secs
	} else {
		secs := int(defaultStopTimeout.Seconds())
		opts.Timeout = &secs
	}
	if err := c.api.ContainerStop(ctx, id, opts); err != nil {
		return mapDaemonError("StopContainer", err)
	}
	return nil
}

// RemoveContainer removes a container, optionally forcing removal of a
// running one.
func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	if err := c.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		return mapDaemonError("RemoveContainer", err)
	}
	return nil
}

// RenameContainer renames a container in place, used heavily by the rolling
// and blue-green strategies to swap an old/new container pair.
func (c *Client) RenameContainer(ctx context.Context, id, newName string) error {
	if err := c.api.ContainerRename(ctx, id, newName); err != nil {
		return mapDaemonError("RenameContainer", err)
	}
	return nil
}

// ContainerStats returns a point-in-time CPU/memory snapshot, used to judge
// canary health (restart count, basic stats) per the canary strategy.
func (c *Client) ContainerStats(ctx context.Context, id string) (container.StatsResponseReader, error) {
	stats, err := c.api.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return stats, mapDaemonError("ContainerStats", err)
	}
	return stats, nil
}
