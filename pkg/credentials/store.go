package credentials

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

const keyringService = "voomreport"

// ErrNotFound indicates a secret is not present in any store
var ErrNotFound = errors.New("credential not found")

// Store resolves a named secret from some backing source
type Store interface {
	Retrieve(name string) (string, error)
}

// EnvironmentStore reads secrets from environment variables. The secret name
// is the environment variable name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Retrieve reads the named environment variable
func (e *EnvironmentStore) Retrieve(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// KeyringStore reads secrets from the system keychain under the voomreport
// service entry. Deployments without a desktop keychain simply fall through
// to the next store in the chain.
type KeyringStore struct{}

// NewKeyringStore creates a keychain-based store
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Retrieve reads the named secret from the system keychain
func (k *KeyringStore) Retrieve(name string) (string, error) {
	value, err := keyring.Get(keyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Chain queries stores in order and returns the first hit
type Chain struct {
	stores []Store
}

// NewChain builds a resolution chain over the given stores
func NewChain(stores ...Store) *Chain {
	return &Chain{stores: stores}
}

// DefaultChain resolves secrets from the environment first, then the system
// keychain.
func DefaultChain() *Chain {
	return NewChain(NewEnvironmentStore(), NewKeyringStore())
}

// Retrieve returns the first value found across the chain
func (c *Chain) Retrieve(name string) (string, error) {
	for _, s := range c.stores {
		value, err := s.Retrieve(name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			continue // keychain may be unavailable entirely
		}
	}
	return "", ErrNotFound
}
