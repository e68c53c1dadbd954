// Package secretcrypto provides AES-256-GCM authenticated encryption for
// secret material held at rest (HostRecord.secret_material, the
// session-scoped elevation secret), keyed by a machine-derived seed so no
// external key management is required for a single-operator install.
package secretcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	encPrefix   = "$dp_enc$"
	encV1Prefix = "$dp_enc$v1$"
)

// DefaultEncryptor is the process-wide encryptor initialized at startup.
var DefaultEncryptor *Encryptor

// Init initializes the default encryptor with a base64-encoded 32-byte AES
// key. Additional old keys may be provided for rotation — they are tried
// during decryption if the primary key fails. If currentKeyBase64 is empty,
// encryption is disabled and secrets are stored as plaintext (used only in
// tests).
func Init(currentKeyBase64 string, oldKeysBase64 ...string) error {
	if currentKeyBase64 == "" {
		DefaultEncryptor = nil
		return nil
	}

	primaryKey, err := decodeKey(currentKeyBase64)
	if err != nil {
		return fmt.Errorf("secretcrypto: invalid primary encryption key: %w", err)
	}

	var oldKeys [][]byte
	for i, oldKeyB64 := range oldKeysBase64 {
		if oldKeyB64 == "" {
			continue
		}
		k, err := decodeKey(oldKeyB64)
		if err != nil {
			return fmt.Errorf("secretcrypto: invalid old encryption key [%d]: %w", i, err)
		}
		oldKeys = append(oldKeys, k)
	}

	DefaultEncryptor = &Encryptor{primaryKey: primaryKey, oldKeys: oldKeys}
	return nil
}

// InitFromMachineSeed derives the primary key from a machine-stable seed
// (the process uid from os.Getuid plus configRoot as given) via HKDF-SHA256,
// satisfying the encryption requirement for HostRecord.secret_material and
// the elevation secret without any operator-supplied key material.
func InitFromMachineSeed(configRoot string) error {
	key, err := DeriveKey(machineSeed(configRoot))
	if err != nil {
		return fmt.Errorf("secretcrypto: derive key: %w", err)
	}
	DefaultEncryptor = &Encryptor{primaryKey: key}
	return nil
}

// DeriveKey runs HKDF-SHA256 over seed and returns a 32-byte AES-256 key.
func DeriveKey(seed []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, seed, []byte("dockerpilot-secret-v1"), []byte("secret-material"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func machineSeed(configRoot string) []byte {
	uid := os.Getuid()
	return []byte(fmt.Sprintf("%d:%s", uid, configRoot))
}

// decodeKey decodes and validates a base64-encoded 32-byte AES key.
func decodeKey(keyBase64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (AES-256), got %d", len(key))
	}
	return key, nil
}

// Enabled returns true if the default encryptor is initialized.
func Enabled() bool {
	return DefaultEncryptor != nil
}

// Encryptor performs AES-256-GCM encryption and decryption.
type Encryptor struct {
	primaryKey []byte
	oldKeys    [][]byte
}

// Encrypt encrypts plaintext using the primary key and returns
// "$dp_enc$v1$<base64(nonce|ciphertext)>".
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.primaryKey)
	if err != nil {
		return "", fmt.Errorf("secretcrypto: cipher error: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("secretcrypto: GCM error: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretcrypto: nonce generation error: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encV1Prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a value produced by Encrypt, trying the primary key then
// each old key in order (for key rotation).
func (e *Encryptor) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return "", fmt.Errorf("secretcrypto: value does not have encryption prefix")
	}

	payload := strings.TrimPrefix(value, encV1Prefix)
	payload = strings.TrimPrefix(payload, encPrefix)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("secretcrypto: invalid base64: %w", err)
	}

	keys := append([][]byte{e.primaryKey}, e.oldKeys...)
	for _, key := range keys {
		plaintext, err := decryptWithKey(key, data)
		if err == nil {
			return plaintext, nil
		}
	}

	return "", fmt.Errorf("secretcrypto: decryption failed with all keys")
}

func decryptWithKey(key, data []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// IsEncrypted returns true if the value has the "$dp_enc$" prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}
