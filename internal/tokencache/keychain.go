package tokencache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeychainClient is the OS secure store holding the cache encryption key.
type KeychainClient interface {
	Query(service, account string) ([]byte, error)
	Store(service, account string, value []byte) error
	Delete(service, account string) error
	// Validate probes the store with a round trip.
	Validate() error
	IsAvailable() bool
	IsHeadless() bool
}

// KeychainError wraps OS keychain errors with context.
type KeychainError struct {
	Op      string
	Service string
	Account string
	Err     error
}

func (e *KeychainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("keychain %s error for %s/%s: %v", e.Op, e.Service, e.Account, e.Err)
	}
	return fmt.Sprintf("keychain %s error for %s/%s", e.Op, e.Service, e.Account)
}

func (e *KeychainError) Unwrap() error {
	return e.Err
}

// Keychain sentinel errors
var (
	ErrKeychainItemNotFound        = errors.New("keychain item not found")
	ErrKeychainAccessDenied        = errors.New("keychain access denied")
	ErrKeychainUnsupportedPlatform = errors.New("keychain not supported on this platform")
	ErrKeychainHeadless            = errors.New("keychain requires a desktop session")
)

const probeAccount = "tokenbroker-probe"

// NewKeychainClient returns the keychain client for this platform.
func NewKeychainClient() KeychainClient {
	return &keyringClient{}
}

// keyringClient stores items through the platform keyring. Availability is
// decided per platform.
type keyringClient struct{}

func (c *keyringClient) Query(service, account string) ([]byte, error) {
	if !platformSupported {
		return nil, ErrKeychainUnsupportedPlatform
	}
	secret, err := keyring.Get(service, account)
	if err != nil {
		return nil, translateKeyringError(err)
	}
	return []byte(secret), nil
}

func (c *keyringClient) Store(service, account string, value []byte) error {
	if !platformSupported {
		return ErrKeychainUnsupportedPlatform
	}
	return translateKeyringError(keyring.Set(service, account, string(value)))
}

func (c *keyringClient) Delete(service, account string) error {
	if !platformSupported {
		return ErrKeychainUnsupportedPlatform
	}
	return translateKeyringError(keyring.Delete(service, account))
}

func (c *keyringClient) Validate() error {
	if !c.IsAvailable() {
		return ErrKeychainUnsupportedPlatform
	}
	if c.IsHeadless() {
		return ErrKeychainHeadless
	}
	return probe(c, "tokenbroker")
}

func (c *keyringClient) IsAvailable() bool {
	return platformAvailable()
}

func (c *keyringClient) IsHeadless() bool {
	return platformHeadless()
}

// probe writes, reads back and deletes a throwaway item.
func probe(c KeychainClient, service string) error {
	const want = "ok"
	if err := c.Store(service, probeAccount, []byte(want)); err != nil {
		return &KeychainError{Op: "store", Service: service, Account: probeAccount, Err: err}
	}
	got, err := c.Query(service, probeAccount)
	if err != nil {
		return &KeychainError{Op: "query", Service: service, Account: probeAccount, Err: err}
	}
	if string(got) != want {
		return &KeychainError{Op: "query", Service: service, Account: probeAccount, Err: errors.New("read back a different value")}
	}
	if err := c.Delete(service, probeAccount); err != nil && !errors.Is(err, ErrKeychainItemNotFound) {
		return &KeychainError{Op: "delete", Service: service, Account: probeAccount, Err: err}
	}
	return nil
}

func translateKeyringError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrKeychainItemNotFound
	case isAccessDenied(err):
		return fmt.Errorf("%w: %v", ErrKeychainAccessDenied, err)
	default:
		return err
	}
}

func isAccessDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "canceled")
}
