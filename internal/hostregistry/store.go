package hostregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/dockerclient"
	"dockerpilot/internal/secretcrypto"
)

// hostResolver turns a HostRecord + its decrypted Secret into a live
// dockerclient.API. *Resolver is the production implementation; tests
// substitute a fake to avoid touching the network.
type hostResolver interface {
	Resolve(ctx context.Context, record HostRecord, secret Secret) (dockerclient.API, error)
}

// Registry is the in-memory, mutex-guarded HostRecord table, persisted to
// a flat JSON file. A single reader-writer lock guards every operation,
// matching the read-mostly, single-lock shared-resource rule.
type Registry struct {
	mu       sync.RWMutex
	path     string
	records  map[string]HostRecord
	resolver hostResolver
}

// NewRegistry loads records from path (creating an empty table if the
// file does not yet exist) and returns a ready Registry. resolver handles
// turning a record into a live dockerclient.API.
func NewRegistry(path string, resolver hostResolver) (*Registry, error) {
	r := &Registry{path: path, records: make(map[string]HostRecord), resolver: resolver}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("hostregistry: read %s: %w", path, err)
	}

	var list []HostRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("hostregistry: parse %s: %w", path, err)
	}
	for _, rec := range list {
		r.records[rec.ID] = rec
	}
	return r, nil
}

// List returns every record with SecretCiphertext stripped, per the
// ListHosts contract (never return secrets).
func (r *Registry) List() []HostRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HostRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec.SecretCiphertext = ""
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one record (secret-free) by id.
func (r *Registry) Get(id string) (HostRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return HostRecord{}, false
	}
	rec.SecretCiphertext = ""
	return rec, true
}

// Create encrypts secret, stores record under record.ID, and persists the
// table.
func (r *Registry) Create(record HostRecord, secret Secret) error {
	ciphertext, err := encryptSecret(secret)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return apierrors.New("Create", apierrors.KindInvalidDescriptor, fmt.Errorf("host %q already exists", record.ID))
	}
	record.SecretCiphertext = ciphertext
	r.records[record.ID] = record
	return r.persistLocked()
}

// Update replaces record's non-secret fields; if secret is non-nil it
// also replaces the stored credential.
func (r *Registry) Update(id string, record HostRecord, secret *Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[id]
	if !ok {
		return apierrors.New("Update", apierrors.KindHostNotFound, fmt.Errorf("host %q not found", id))
	}

	record.ID = id
	record.SecretCiphertext = existing.SecretCiphertext
	if secret != nil {
		ciphertext, err := encryptSecret(*secret)
		if err != nil {
			return err
		}
		record.SecretCiphertext = ciphertext
	}

	r.records[id] = record
	return r.persistLocked()
}

// Delete removes record id. Idempotent.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	return r.persistLocked()
}

// secretFor decrypts and returns the stored Secret for id.
func (r *Registry) secretFor(id string) (Secret, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return Secret{}, apierrors.New("secretFor", apierrors.KindHostNotFound, fmt.Errorf("host %q not found", id))
	}
	return decryptSecret(rec.SecretCiphertext)
}

// recordByID returns the full stored record (including ciphertext),
// for internal use by resolve/test.
func (r *Registry) recordByID(id string) (HostRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// persistLocked writes the full table to r.path atomically (temp file +
// rename). Caller must hold r.mu for writing.
func (r *Registry) persistLocked() error {
	list := make([]HostRecord, 0, len(r.records))
	for _, rec := range r.records {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("hostregistry: marshal: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("hostregistry: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".servers-*.json")
	if err != nil {
		return fmt.Errorf("hostregistry: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("hostregistry: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("hostregistry: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("hostregistry: rename into place: %w", err)
	}
	return nil
}

func encryptSecret(secret Secret) (string, error) {
	data, err := json.Marshal(secret)
	if err != nil {
		return "", fmt.Errorf("hostregistry: marshal secret: %w", err)
	}
	ciphertext, err := secretcrypto.DefaultEncryptor.Encrypt(string(data))
	if err != nil {
		return "", fmt.Errorf("hostregistry: encrypt secret: %w", err)
	}
	return ciphertext, nil
}

func decryptSecret(ciphertext string) (Secret, error) {
	if ciphertext == "" {
		return Secret{}, nil
	}
	plaintext, err := secretcrypto.DefaultEncryptor.Decrypt(ciphertext)
	if err != nil {
		return Secret{}, fmt.Errorf("hostregistry: decrypt secret: %w", err)
	}
	var secret Secret
	if err := json.Unmarshal([]byte(plaintext), &secret); err != nil {
		return Secret{}, fmt.Errorf("hostregistry: unmarshal secret: %w", err)
	}
	return secret, nil
}
