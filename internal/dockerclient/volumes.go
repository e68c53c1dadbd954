package dockerclient

import (
	"context"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
)

// InspectVolume returns the mountpoint and labels of a named volume, or a
// not_found error if it doesn't exist.
func (c *Client) InspectVolume(ctx context.Context, name string) (volume.Volume, error) {
	v, err := c.api.VolumeInspect(ctx, name)
	if err != nil {
		return volume.Volume{}, mapDaemonError("InspectVolume", err)
	}
	return v, nil
}

// VolumeExists reports whether a named volume exists without treating
// absence as an error.
func (c *Client) VolumeExists(ctx context.Context, name string) (bool, error) {
	_, err := c.InspectVolume(ctx, name)
	if err == nil {
		return true, nil
	}
	if isNotFoundErr(err) {
		return false, nil
	}
	return false, err
}

// CreateVolume creates a named volume if absent, used by blue-green's data
// migration step and by Migrate's volume re-creation on the target host.
func (c *Client) CreateVolume(ctx context.Context, name string) error {
	exists, err := c.VolumeExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = c.api.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		return mapDaemonError("CreateVolume", err)
	}
	return nil
}

// ListVolumes lists volumes matching nameFilter via the daemon's "name"
// filter; an empty nameFilter lists every volume.
func (c *Client) ListVolumes(ctx context.Context, nameFilter string) ([]*volume.Volume, error) {
	f := filters.NewArgs()
	if nameFilter != "" {
		f.Add("name", nameFilter)
	}
	resp, err := c.api.VolumeList(ctx, volume.ListOptions{Filters: f})
	if err != nil {
		return nil, mapDaemonError("ListVolumes", err)
	}
	return resp.Volumes, nil
}
