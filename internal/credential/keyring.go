// Package credential stores per-account app passwords in the system
// keyring, falling back to an encrypted file under the config directory.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailexport"

// Ring is a handle to the mailexport keyring namespace.
type Ring struct {
	fileDir string
}

// NewRing configures the keyring; fileDir backs the file fallback.
func NewRing(fileDir string) *Ring {
	return &Ring{fileDir: fileDir}
}

func (r *Ring) open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  r.fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailexport-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a secret by key.
func (r *Ring) Get(key string) (string, error) {
	ring, err := r.open()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret under key.
func (r *Ring) Set(key, value string) error {
	ring, err := r.open()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting secret %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret by key.
func (r *Ring) Delete(key string) error {
	ring, err := r.open()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting secret %q: %w", key, err)
	}
	return nil
}
