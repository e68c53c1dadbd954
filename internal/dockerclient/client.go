// Package dockerclient is the one façade DockerPilot uses to talk to a
// Docker Engine API, whether the daemon is local (Unix socket / named pipe)
// or remote over an SSH-tunneled connection. Every exported method returns
// a tagged *apierrors.Error on failure so callers can branch on kind rather
// than parsing strings.
package dockerclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/docker/docker/client"
)

const (
	defaultStopTimeout = 30 * time.Second

	// AlpineHelperImage is the ephemeral-helper image used for tar/cp style
	// data-plane operations (backup, blue-green volume copy, migration).
	AlpineHelperImage = "alpine:latest"
)

// Client wraps the moby API client plus whatever transport keeps it alive
// (an SSH tunnel for remote hosts, nothing for local). It is the concrete
// type behind the AuthenticatedClient handle described by the host
// registry: created on demand by hostregistry.Resolve, owned by exactly one
// operation, and closed when that operation ends.
type Client struct {
	api    *client.Client
	hostID string
	tunnel func() error // closes the SSH transport, if any; nil for local
	closed bool
}

// HostID returns the id of the HostRecord this client resolves, or "local".
func (c *Client) HostID() string {
	return c.hostID
}

// NewLocal returns a Client bound to the platform-native daemon socket.
func NewLocal(ctx context.Context) (*Client, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("dockerclient: create local client: %w", err)
	}
	return &Client{api: cli, hostID: "local"}, nil
}

// NewOverDialer returns a Client whose Docker API traffic flows over dial,
// a net.Conn factory that already terminates on the remote daemon's socket
// (typically an SSH-forwarded unix socket). closeTunnel, if non-nil, is
// invoked by Close after the API client itself is closed.
func NewOverDialer(hostID string, dial func(ctx context.Context) (net.Conn, error), closeTunnel func() error) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dial(ctx)
			},
		},
	}

	cli, err := client.NewClientWithOpts(
		client.WithHTTPClient(httpClient),
		client.WithHost("http://docker.sock"),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("dockerclient: create remote client for %s: %w", hostID, err)
	}

	return &Client{api: cli, hostID: hostID, tunnel: closeTunnel}, nil
}

// Close releases the underlying API client and, for remote hosts, tears
// down the SSH tunnel. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if err := c.api.Close(); err != nil {
		firstErr = err
	}
	if c.tunnel != nil {
		if err := c.tunnel(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ping verifies the daemon is reachable, per C1's test() contract.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx)
	if err != nil {
		return mapDaemonError("Ping", err)
	}
	return nil
}

// Raw exposes the underlying *client.Client for operations not wrapped by
// this façade. Prefer the wrapped methods; this escape hatch exists for
// cases (e.g. streaming ImageSave/ImageLoad in the migration engine) where
// the raw SDK type is the most natural signature.
func (c *Client) Raw() *client.Client {
	return c.api
}
