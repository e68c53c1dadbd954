package hostregistry

import (
	"context"
	"fmt"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/dockerclient"
)

// Resolve looks up id, decrypts its secret, and hands both to the
// Registry's Resolver to obtain a live client. The local host never has a
// stored secret; Resolve passes a zero Secret for it.
func (r *Registry) Resolve(ctx context.Context, id string) (dockerclient.API, error) {
	if id == LocalHostID {
		return r.resolver.Resolve(ctx, HostRecord{ID: LocalHostID}, Secret{})
	}

	record, ok := r.recordByID(id)
	if !ok {
		return nil, apierrors.New("Resolve", apierrors.KindHostNotFound, fmt.Errorf("host %q not found", id))
	}
	secret, err := decryptSecret(record.SecretCiphertext)
	if err != nil {
		return nil, err
	}
	return r.resolver.Resolve(ctx, record, secret)
}

// Test implements TestHost per spec.md §4.1: it resolves a candidate
// record + secret directly against the resolver and performs one Ping,
// without ever touching the stored table. Unlike Resolve/TestByID this
// record need not exist yet, so a host can be validated before it is ever
// Create'd.
func (r *Registry) Test(ctx context.Context, record HostRecord, secret Secret) error {
	client, err := r.resolver.Resolve(ctx, record, secret)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}

// TestByID opens a connection to an already-stored id and performs one
// Ping, surfacing whatever typed error Resolve/Ping produced without
// mutating the registry.
func (r *Registry) TestByID(ctx context.Context, id string) error {
	client, err := r.Resolve(ctx, id)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}
