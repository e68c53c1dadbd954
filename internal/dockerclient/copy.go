package dockerclient

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
)

// CopyFromContainer streams a tar of srcPath out of a container, used by
// the migration engine's cross-host mount copy and by blue-green's
// known-config subtree copy.
func (c *Client) CopyFromContainer(ctx context.Context, id, srcPath string) (io.ReadCloser, error) {
	reader, _, err := c.api.CopyFromContainer(ctx, id, srcPath)
	if err != nil {
		return nil, mapDaemonError("CopyFromContainer", err)
	}
	return reader, nil
}

// CopyToContainer streams a tar into a container at dstPath.
func (c *Client) CopyToContainer(ctx context.Context, id, dstPath string, tar io.Reader) error {
	if err := c.api.CopyToContainer(ctx, id, dstPath, tar, container.CopyToContainerOptions{}); err != nil {
		return mapDaemonError("CopyToContainer", err)
	}
	return nil
}
