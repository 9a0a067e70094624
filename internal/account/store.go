// Package account keeps the registered mail accounts in a flat JSON file,
// one record per address. CRUD only, the whole file is rewritten on every
// mutation.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"go.uber.org/zap"
)

// AuthMethod selects the retrieval strategy for an account.
type AuthMethod string

const (
	// AuthDelegated is the OAuth flow with a locally cached token.
	AuthDelegated AuthMethod = "delegated"
	// AuthDirectSecret is direct login with a stored app password.
	AuthDirectSecret AuthMethod = "direct-secret"
)

var (
	ErrInvalidAddress = errors.New("invalid email address")
	ErrInvalidMethod  = errors.New("unknown auth method")
	ErrDuplicate      = errors.New("account already registered")
	ErrUnknownAccount = errors.New("account not registered")
	ErrSecretRequired = errors.New("direct-secret account needs a secret")
)

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Account is one registered mailbox.
type Account struct {
	Address    string     `json:"-"`
	AuthMethod AuthMethod `json:"auth_method"`
	// SecretRef names the keyring entry holding the app password.
	// Present only when AuthMethod is direct-secret.
	SecretRef string `json:"secret_ref,omitempty"`
}

// Store is the JSON-file backed account list. Not safe for concurrent
// mutation from two processes.
type Store struct {
	path     string
	accounts map[string]Account
	log      *zap.SugaredLogger
}

// Open loads the account file, treating a missing file as an empty store.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	s := &Store{path: path, accounts: map[string]Account{}, log: log}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}
	if err := json.Unmarshal(data, &s.accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
	}
	for addr, acct := range s.accounts {
		acct.Address = addr
		s.accounts[addr] = acct
	}
	return s, nil
}

// List returns all registered addresses, sorted.
func (s *Store) List() []string {
	addrs := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Details looks an account up by address.
func (s *Store) Details(address string) (Account, bool) {
	acct, ok := s.accounts[address]
	return acct, ok
}

// Add registers a new account. Malformed addresses, duplicates and
// direct-secret accounts without a secret reference are rejected.
func (s *Store) Add(address string, method AuthMethod, secretRef string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	switch method {
	case AuthDelegated, AuthDirectSecret:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}
	if method == AuthDirectSecret && secretRef == "" {
		return ErrSecretRequired
	}
	if _, exists := s.accounts[address]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, address)
	}

	s.accounts[address] = Account{Address: address, AuthMethod: method, SecretRef: secretRef}
	if err := s.save(); err != nil {
		delete(s.accounts, address)
		return err
	}
	s.log.Infow("account added", "address", address, "method", method)
	return nil
}

// Remove unregisters an account.
func (s *Store) Remove(address string) error {
	acct, exists := s.accounts[address]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}

	delete(s.accounts, address)
	if err := s.save(); err != nil {
		s.accounts[address] = acct
		return err
	}
	s.log.Infow("account removed", "address", address)
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.accounts, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing accounts file: %w", err)
	}
	return nil
}
