// Package tokencache persists the identity provider's token cache blob.
//
// Every Provider is an MSAL cache accessor: clients built with a provider
// registered load the blob before each operation and write it back after. Two
// providers share one base. MemoryProvider keeps the blob for the life of the
// process. PersistentProvider stores it in an encrypted file whose key lives
// in the OS keychain and, when explicitly allowed, degrades to an unprotected
// file.
package tokencache

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/pkg/account"
)

// Storage tiers reported by PersistenceOptions.
const (
	TierMemory  = "memory"
	TierKeyring = "keyring"
	TierFile    = "file"
)

// PersistenceOptions describe where and how the blob is stored.
type PersistenceOptions struct {
	Directory          string
	FileName           string
	KeyringService     string
	AllowUnsafeStorage bool

	// Tier is the storage tier in use.
	Tier string
	// Encrypted reports whether the blob is encrypted at rest.
	Encrypted bool
}

// CacheTarget receives a cache accessor before a client is built.
type CacheTarget interface {
	SetCache(accessor cache.ExportReplace)
}

// Provider owns the token cache blob.
type Provider interface {
	cache.ExportReplace

	// CacheData returns a copy of the current blob.
	CacheData(ctx context.Context) ([]byte, error)
	PersistenceOptions() PersistenceOptions
	// RegisterCache wires the provider into a client configuration so that
	// the client's cache reads and writes flow through this provider.
	RegisterCache(target CacheTarget)
	// VerifyPersistence probes the storage backend. A nil error means usable.
	VerifyPersistence(ctx context.Context) error
	// RefreshToken mines the blob for a refresh token. It returns "" when
	// none is stored.
	RefreshToken(ctx context.Context, clientID, homeAccountID string) (string, error)
	// RemoveAccount signs a User account out of the cache.
	RemoveAccount(ctx context.Context, acct *account.Account, env account.Environment) error
	// Update applies fn to the parsed blob and stores the result atomically.
	Update(ctx context.Context, fn func(doc Document) error) error
	// Clear deletes all cached data.
	Clear(ctx context.Context) error
}

// store is a storage tier for the raw blob.
type store interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	// Modify replaces the blob with fn(current) without interleaving writes.
	Modify(ctx context.Context, fn func(current []byte) ([]byte, error)) error
	Verify(ctx context.Context) error
	Clear(ctx context.Context) error
}

// base implements Provider on top of a store.
type base struct {
	store   store
	opts    PersistenceOptions
	factory identity.Factory
	logger  *logging.Logger
}

func newBase(s store, opts PersistenceOptions, factory identity.Factory, logger *logging.Logger) *base {
	if logger == nil {
		logger = logging.Nop()
	}
	if factory == nil {
		factory = identity.MSALFactory{}
	}
	opts.Tier = s.Name()
	return &base{store: s, opts: opts, factory: factory, logger: logger}
}

// Replace loads the stored blob into an MSAL cache.
func (b *base) Replace(ctx context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	data, err := b.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token cache from %s: %w", b.store.Name(), err)
	}
	if len(data) == 0 {
		return nil
	}
	return u.Unmarshal(data)
}

// Export stores an MSAL cache's serialized state.
func (b *base) Export(ctx context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("serialize token cache: %w", err)
	}
	if err := b.store.Save(ctx, data); err != nil {
		return fmt.Errorf("save token cache to %s: %w", b.store.Name(), err)
	}
	return nil
}

func (b *base) CacheData(ctx context.Context) ([]byte, error) {
	return b.store.Load(ctx)
}

func (b *base) PersistenceOptions() PersistenceOptions {
	return b.opts
}

func (b *base) RegisterCache(target CacheTarget) {
	target.SetCache(b)
}

func (b *base) VerifyPersistence(ctx context.Context) error {
	return b.store.Verify(ctx)
}

func (b *base) RefreshToken(ctx context.Context, clientID, homeAccountID string) (string, error) {
	if homeAccountID == "" {
		return "", nil
	}
	data, err := b.store.Load(ctx)
	if err != nil {
		return "", err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return "", err
	}
	secret, _ := doc.RefreshTokenSecret(clientID, homeAccountID)
	return secret, nil
}

func (b *base) RemoveAccount(ctx context.Context, acct *account.Account, env account.Environment) error {
	if acct == nil || acct.Type != account.User {
		return nil
	}

	clientID := acct.ApplicationID()
	if clientID == "" {
		clientID = env.ClientID()
	}
	cfg := identity.ClientConfig{ClientID: clientID, Authority: env.AuthorityFor(acct.Tenant)}
	b.RegisterCache(&cfg)

	client, err := b.factory.New(cfg)
	if err != nil {
		return err
	}
	accounts, err := client.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("list cached accounts: %w", err)
	}

	home := acct.HomeAccountID()
	for _, a := range accounts {
		byName := acct.Username != "" && strings.EqualFold(a.PreferredUsername, acct.Username)
		byID := home != "" && a.HomeAccountID == home
		if !byName && !byID {
			continue
		}
		b.logger.Debug("Removing cached account %s (%s)", a.PreferredUsername, a.HomeAccountID)
		if err := client.RemoveAccount(ctx, a); err != nil {
			return fmt.Errorf("remove cached account %s: %w", a.PreferredUsername, err)
		}
	}
	return nil
}

func (b *base) Update(ctx context.Context, fn func(doc Document) error) error {
	return b.store.Modify(ctx, func(current []byte) ([]byte, error) {
		doc, err := ParseDocument(current)
		if err != nil {
			return nil, err
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		return doc.Marshal()
	})
}

func (b *base) Clear(ctx context.Context) error {
	return b.store.Clear(ctx)
}
