package storage

import (
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ServiceName is the identifier used for all Conduit secrets in the system
// keyring.
const ServiceName = "conduit"

// ErrSecretNotFound is returned when a secret does not exist.
var ErrSecretNotFound = fmt.Errorf("secret not found")

// SecretStore holds credential secrets. Only the secret value lives here;
// credential metadata is in SQLite.
type SecretStore interface {
	// Set stores a secret under a key.
	Set(key, value string) error
	// Get retrieves a secret.
	Get(key string) (string, error)
	// Delete removes a secret.
	Delete(key string) error
}

// KeyringSecretStore implements SecretStore using the system keyring.
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (GNOME Keyring, KWallet)
type KeyringSecretStore struct {
	service string
}

// NewKeyringSecretStore creates a keyring-based secret store.
func NewKeyringSecretStore() *KeyringSecretStore {
	return &KeyringSecretStore{service: ServiceName}
}

// Set stores a secret in the system keyring.
func (s *KeyringSecretStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("secret key cannot be empty")
	}
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Get retrieves a secret from the system keyring.
func (s *KeyringSecretStore) Get(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("secret key cannot be empty")
	}
	value, err := keyring.Get(s.service, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("failed to retrieve secret: %w", err)
	}
	return value, nil
}

// Delete removes a secret from the system keyring.
func (s *KeyringSecretStore) Delete(key string) error {
	if key == "" {
		return fmt.Errorf("secret key cannot be empty")
	}
	if err := keyring.Delete(s.service, key); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

// MemorySecretStore implements SecretStore in memory, for tests and
// environments without a keyring daemon.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]string)}
}

// Set stores a secret.
func (s *MemorySecretStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
	return nil
}

// Get retrieves a secret.
func (s *MemorySecretStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return value, nil
}

// Delete removes a secret.
func (s *MemorySecretStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}
