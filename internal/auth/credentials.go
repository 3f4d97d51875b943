package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name passwords are stored under.
const KeyringService = "searchscroll"

var (
	// ErrNoSecret is returned when no password is stored for a username.
	ErrNoSecret = errors.New("no stored password")
	// ErrMissingCredentials is returned when a login is attempted without a username or password.
	ErrMissingCredentials = errors.New("username and password are required")
)

// Credentials are the account used to log in before searching
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both username and password are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("@%s", c.Username)
}

// SecretStore keeps account passwords in the OS keychain
type SecretStore struct {
	service string
}

// NewSecretStore creates a store under KeyringService
func NewSecretStore() *SecretStore {
	return &SecretStore{service: KeyringService}
}

// Get returns the stored password for username, or ErrNoSecret.
func (s *SecretStore) Get(username string) (string, error) {
	secret, err := keyring.Get(s.service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoSecret
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return secret, nil
}

// Set stores the password for username
func (s *SecretStore) Set(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	if err := keyring.Set(s.service, username, password); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

// Delete removes the password for username. Deleting a missing entry is not an error.
func (s *SecretStore) Delete(username string) error {
	err := keyring.Delete(s.service, username)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
