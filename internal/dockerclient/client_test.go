package dockerclient

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOverDialerSetsHostID(t *testing.T) {
	dial := func(ctx context.Context) (net.Conn, error) {
		client, _ := net.Pipe()
		return client, nil
	}

	c, err := NewOverDialer("staging-01", dial, nil)
	require.NoError(t, err)
	assert.Equal(t, "staging-01", c.HostID())
}

func TestClientCloseIsIdempotent(t *testing.T) {
	tunnelClosed := 0
	dial := func(ctx context.Context) (net.Conn, error) {
		client, _ := net.Pipe()
		return client, nil
	}
	c, err := NewOverDialer("staging-01", dial, func() error {
		tunnelClosed++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, tunnelClosed, "tunnel close must run exactly once")
}
