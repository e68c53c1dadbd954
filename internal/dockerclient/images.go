package dockerclient

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"

	"dockerpilot/internal/apierrors"
)

// PullImage pulls ref, streaming the daemon's progress JSON to the caller
// (the engine drains it to drive its own progress percentages during
// building/migrating stages) and blocking until the pull completes.
func (c *Client) PullImage(ctx context.Context, ref string, onProgress func(line []byte)) error {
	reader, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return mapDaemonError("PullImage", err)
	}
	defer reader.Close()
	return drain(reader, onProgress)
}

// TagImage tags an existing image under a new reference, used by the
// promotion engine to retag a built image for the target environment.
func (c *Client) TagImage(ctx context.Context, source, target string) error {
	if err := c.api.ImageTag(ctx, source, target); err != nil {
		return mapDaemonError("TagImage", err)
	}
	return nil
}

// RemoveImage removes an image by id or ref. force mirrors `docker rmi -f`.
func (c *Client) RemoveImage(ctx context.Context, ref string, force bool) error {
	_, err := c.api.ImageRemove(ctx, ref, image.RemoveOptions{Force: force})
	if err != nil {
		return mapDaemonError("RemoveImage", err)
	}
	return nil
}

// ImageInspect returns whether ref exists locally, and its image id if so.
func (c *Client) ImageInspect(ctx context.Context, ref string) (id string, exists bool, err error) {
	resp, err := c.api.ImageInspect(ctx, ref)
	if err != nil {
		wrapped := mapDaemonError("ImageInspect", err)
		if apierrors.Is(wrapped, apierrors.KindNotFound) {
			return "", false, nil
		}
		return "", false, wrapped
	}
	return resp.ID, true, nil
}

// SaveImage streams a tar of ref (and its layers) for migration; callers
// must close the returned ReadCloser.
func (c *Client) SaveImage(ctx context.Context, refs ...string) (io.ReadCloser, error) {
	reader, err := c.api.ImageSave(ctx, refs)
	if err != nil {
		return nil, mapDaemonError("SaveImage", err)
	}
	return reader, nil
}

// LoadImage loads a tar stream produced by SaveImage into this daemon.
func (c *Client) LoadImage(ctx context.Context, tar io.Reader, onProgress func(line []byte)) error {
	resp, err := c.api.ImageLoad(ctx, tar)
	if err != nil {
		return mapDaemonError("LoadImage", err)
	}
	defer resp.Body.Close()
	return drain(resp.Body, onProgress)
}

// BuildImage builds an image from a build context tar, tagging it as
// imageTag. Used by the quick/rolling/blue-green strategies' "building"
// stage.
func (c *Client) BuildImage(ctx context.Context, buildContext io.Reader, dockerfile, imageTag string, onProgress func(line []byte)) error {
	resp, err := c.api.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Dockerfile: dockerfile,
		Tags:       []string{imageTag},
		Remove:     true,
	})
	if err != nil {
		return mapDaemonError("BuildImage", err)
	}
	defer resp.Body.Close()
	return drain(resp.Body, onProgress)
}

func drain(r io.Reader, onProgress func(line []byte)) error {
	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			if onProgress != nil {
				onProgress(buf[:n])
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return mapDaemonError("drain", err)
		}
	}
}

func errIsNotFound(err error) bool {
	return err != nil && apierrors.Is(err, apierrors.KindNotFound)
}
