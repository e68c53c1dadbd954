// Package hostregistry persists HostRecord definitions, encrypts their
// credentials at rest, and resolves a HostRecord into a live
// dockerclient.API connection — local directly, remote over an
// SSH-tunneled Docker daemon socket.
package hostregistry

import "time"

// AuthKind is the credential scheme a remote HostRecord authenticates
// with. The empty value is only valid for the synthetic "local" record.
type AuthKind string

const (
	AuthPassword      AuthKind = "password"
	AuthKey           AuthKind = "key"
	AuthKeyPassphrase AuthKind = "key_passphrase"
	AuthPasswordTOTP  AuthKind = "password_totp"
)

// HostRecord is one entry in the registry: either the synthetic "local"
// host or a remote SSH-reachable Docker daemon.
type HostRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Address          string    `json:"address"` // "host:port" for remote; ignored for local
	Username         string    `json:"username"`
	AuthKind         AuthKind  `json:"auth_kind"`
	DockerSocketPath string    `json:"docker_socket_path,omitempty"` // remote daemon socket, default /var/run/docker.sock
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// SecretCiphertext is the encrypted, JSON-marshaled Secret. Never
	// populated in any value returned by List/Get — those are
	// secret-free per the ListHosts contract.
	SecretCiphertext string `json:"secret_ciphertext,omitempty"`
}

// Secret is the credential material for one HostRecord, marshaled to
// JSON and encrypted as a single opaque blob rather than field-by-field,
// since nothing here needs partial/transparent decryption.
type Secret struct {
	Password      string `json:"password,omitempty"`
	PrivateKeyPEM string `json:"private_key_pem,omitempty"`
	Passphrase    string `json:"passphrase,omitempty"`
	TOTPSecret    string `json:"totp_secret,omitempty"` // base32 shared secret
}

const LocalHostID = "local"
