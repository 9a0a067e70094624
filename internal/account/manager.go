package account

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// SecretStore holds per-account secrets outside the JSON file.
type SecretStore interface {
	Set(key, value string) error
	Delete(key string) error
}

// Manager wraps the store with the lifecycle side effects the store itself
// stays ignorant of: storing app passwords on add and cascading removal to
// locally cached session artifacts.
type Manager struct {
	store     *Store
	secrets   SecretStore
	tokenPath func(address string) string
	log       *zap.SugaredLogger
}

func NewManager(store *Store, secrets SecretStore, tokenPath func(string) string, log *zap.SugaredLogger) *Manager {
	return &Manager{store: store, secrets: secrets, tokenPath: tokenPath, log: log}
}

func (m *Manager) List() []string                         { return m.store.List() }
func (m *Manager) Details(address string) (Account, bool) { return m.store.Details(address) }

// Add registers an account. For direct-secret accounts the app password is
// stored in the keyring under the address and the store only keeps the
// reference.
func (m *Manager) Add(address string, method AuthMethod, secret string) error {
	secretRef := ""
	if method == AuthDirectSecret {
		if secret == "" {
			return ErrSecretRequired
		}
		secretRef = address
	}

	if err := m.store.Add(address, method, secretRef); err != nil {
		return err
	}

	if secretRef != "" {
		if err := m.secrets.Set(secretRef, secret); err != nil {
			// Roll the registration back rather than leave an account
			// whose secret can never be resolved.
			_ = m.store.Remove(address)
			return fmt.Errorf("storing secret for %s: %w", address, err)
		}
	}
	return nil
}

// Remove unregisters an account and deletes its cached session artifacts:
// the OAuth token file and any keyring secret. Missing artifacts are fine.
func (m *Manager) Remove(address string) error {
	acct, ok := m.store.Details(address)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}

	if err := m.store.Remove(address); err != nil {
		return err
	}

	if err := os.Remove(m.tokenPath(address)); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.Warnw("removing cached token failed", "address", address, "error", err)
	}
	if acct.SecretRef != "" {
		if err := m.secrets.Delete(acct.SecretRef); err != nil {
			m.log.Warnw("removing stored secret failed", "address", address, "error", err)
		}
	}
	return nil
}
