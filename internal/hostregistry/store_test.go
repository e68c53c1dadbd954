package hostregistry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockerpilot/internal/dockerclient"
)

// fakeResolver lets store/registry tests avoid touching the network.
type fakeResolver struct {
	resolve func(ctx context.Context, record HostRecord, secret Secret) (dockerclient.API, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, record HostRecord, secret Secret) (dockerclient.API, error) {
	return f.resolve(ctx, record, secret)
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	reg, err := NewRegistry(path, NewResolver())
	require.NoError(t, err)
	return reg, path
}

func TestNewRegistryToleratesMissingFile(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.Empty(t, reg.List())
}

func TestCreateGetListRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)

	rec := HostRecord{ID: "prod-1", Name: "prod box", Address: "10.0.0.5:22", Username: "deploy", AuthKind: AuthPassword}
	require.NoError(t, reg.Create(rec, Secret{Password: "s3cret"}))

	got, ok := reg.Get("prod-1")
	require.True(t, ok)
	assert.Equal(t, "prod box", got.Name)
	assert.Empty(t, got.SecretCiphertext, "Get must never return secret material")

	list := reg.List()
	require.Len(t, list, 1)
	assert.Empty(t, list[0].SecretCiphertext)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rec := HostRecord{ID: "dup", AuthKind: AuthPassword}
	require.NoError(t, reg.Create(rec, Secret{Password: "a"}))
	err := reg.Create(rec, Secret{Password: "b"})
	assert.Error(t, err)
}

func TestUpdateWithoutSecretPreservesCiphertext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rec := HostRecord{ID: "host-1", Name: "old", AuthKind: AuthPassword}
	require.NoError(t, reg.Create(rec, Secret{Password: "orig"}))

	before, _ := reg.recordByID("host-1")

	updated := HostRecord{ID: "host-1", Name: "new", AuthKind: AuthPassword}
	require.NoError(t, reg.Update("host-1", updated, nil))

	after, _ := reg.recordByID("host-1")
	assert.Equal(t, "new", after.Name)
	assert.Equal(t, before.SecretCiphertext, after.SecretCiphertext)
}

func TestUpdateWithSecretReplacesCiphertext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Create(HostRecord{ID: "host-1", AuthKind: AuthPassword}, Secret{Password: "orig"}))

	newSecret := Secret{Password: "rotated"}
	require.NoError(t, reg.Update("host-1", HostRecord{ID: "host-1", AuthKind: AuthPassword}, &newSecret))

	secret, err := reg.secretFor("host-1")
	require.NoError(t, err)
	assert.Equal(t, "rotated", secret.Password)
}

func TestUpdateUnknownHostFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.Update("nope", HostRecord{ID: "nope"}, nil)
	assert.Error(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Create(HostRecord{ID: "host-1", AuthKind: AuthPassword}, Secret{Password: "x"}))
	require.NoError(t, reg.Delete("host-1"))
	require.NoError(t, reg.Delete("host-1"))
	assert.Empty(t, reg.List())
}

func TestPersistenceSurvivesReload(t *testing.T) {
	reg, path := newTestRegistry(t)
	require.NoError(t, reg.Create(HostRecord{ID: "host-1", Name: "box", AuthKind: AuthPassword}, Secret{Password: "x"}))

	reloaded, err := NewRegistry(path, NewResolver())
	require.NoError(t, err)

	got, ok := reloaded.Get("host-1")
	require.True(t, ok)
	assert.Equal(t, "box", got.Name)

	secret, err := reloaded.secretFor("host-1")
	require.NoError(t, err)
	assert.Equal(t, "x", secret.Password)
}
