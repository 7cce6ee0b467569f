package fakes

import (
	"sync"

	"github.com/systmms/tokenbroker/internal/tokencache"
)

// FakeKeychainClient is a test double for tokencache.KeychainClient
type FakeKeychainClient struct {
	mu sync.Mutex

	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string][]byte

	// Available controls whether the keychain reports as available
	Available bool

	// Headless controls whether the environment is reported as headless
	Headless bool

	// ValidateErr is returned by Validate() if set
	ValidateErr error

	// QueryErr is returned by Query() if set (overrides Secrets lookup)
	QueryErr error

	// StoreErr is returned by Store() if set
	StoreErr error
}

// NewFakeKeychainClient creates a new fake keychain client with defaults
func NewFakeKeychainClient() *FakeKeychainClient {
	return &FakeKeychainClient{
		Secrets:   make(map[string]map[string][]byte),
		Available: true,
	}
}

// SetSecret adds a secret to the fake keychain
func (f *FakeKeychainClient) SetSecret(service, account string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(service, account, value)
}

func (f *FakeKeychainClient) set(service, account string, value []byte) {
	if f.Secrets == nil {
		f.Secrets = make(map[string]map[string][]byte)
	}
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string][]byte)
	}
	f.Secrets[service][account] = append([]byte(nil), value...)
}

// Query retrieves a secret from the fake keychain
func (f *FakeKeychainClient) Query(service, account string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	if accounts, ok := f.Secrets[service]; ok {
		if value, ok := accounts[account]; ok {
			return append([]byte(nil), value...), nil
		}
	}
	return nil, tokencache.ErrKeychainItemNotFound
}

// Store saves a secret in the fake keychain
func (f *FakeKeychainClient) Store(service, account string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StoreErr != nil {
		return f.StoreErr
	}
	f.set(service, account, value)
	return nil
}

// Delete removes a secret from the fake keychain
func (f *FakeKeychainClient) Delete(service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.Secrets[service][account]; !ok {
		return tokencache.ErrKeychainItemNotFound
	}
	delete(f.Secrets[service], account)
	return nil
}

// Has reports whether an item exists
func (f *FakeKeychainClient) Has(service, account string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Secrets[service][account]
	return ok
}

// Validate checks if the keychain is accessible
func (f *FakeKeychainClient) Validate() error {
	return f.ValidateErr
}

// IsAvailable returns whether keychain is available
func (f *FakeKeychainClient) IsAvailable() bool {
	return f.Available
}

// IsHeadless returns whether running in headless environment
func (f *FakeKeychainClient) IsHeadless() bool {
	return f.Headless
}

// Ensure FakeKeychainClient implements tokencache.KeychainClient
var _ tokencache.KeychainClient = (*FakeKeychainClient)(nil)
