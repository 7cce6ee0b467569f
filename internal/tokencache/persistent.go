package tokencache

import (
	"context"
	"path/filepath"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/metrics"
)

// unprotectedSuffix names the plain file kept next to the encrypted one.
const unprotectedSuffix = ".unprotected"

// Dependencies are the collaborators a provider is built with. Zero values
// select the real implementations.
type Dependencies struct {
	Keychain KeychainClient
	Factory  identity.Factory
	Logger   *logging.Logger
	Metrics  *metrics.Recorder
}

func (d *Dependencies) defaults() {
	if d.Keychain == nil {
		d.Keychain = NewKeychainClient()
	}
	if d.Factory == nil {
		d.Factory = identity.MSALFactory{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
}

// PersistentProvider stores the blob on disk.
type PersistentProvider struct {
	*base
}

// NewPersistentProvider picks the most protected storage that verifies.
// The encrypted file is tried first. When it cannot be used, an unprotected
// owner-only file is used only if opts.AllowUnsafeStorage is set.
func NewPersistentProvider(ctx context.Context, opts PersistenceOptions, deps Dependencies) (*PersistentProvider, error) {
	deps.defaults()
	path := filepath.Join(opts.Directory, opts.FileName)

	secureStore := newEncryptedFileStore(path, opts.KeyringService, deps.Keychain, deps.Logger)
	err := secureStore.Verify(ctx)
	if err == nil {
		opts.Encrypted = true
		return &PersistentProvider{base: newBase(secureStore, opts, deps.Factory, deps.Logger)}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !opts.AllowUnsafeStorage {
		return nil, tberrors.Configuration(err, "secure token cache storage is unavailable").
			WithSuggestion("Allow an unprotected cache file with token_cache.allow_unsafe_storage or TOKENBROKER_ALLOW_UNSAFE_CACHE=true, or use the memory cache mode")
	}

	deps.Logger.Warn("Secure token cache storage is unavailable (%v); falling back to an unprotected file", err)
	deps.Metrics.RecordCacheFallback(TierKeyring, TierFile)

	plain := newPlainFileStore(path + unprotectedSuffix)
	if perr := plain.Verify(ctx); perr != nil {
		return nil, tberrors.Configuration(perr, "token cache storage is unavailable")
	}
	opts.Encrypted = false
	return &PersistentProvider{base: newBase(plain, opts, deps.Factory, deps.Logger)}, nil
}

// Path returns the file holding the blob.
func (p *PersistentProvider) Path() string {
	switch s := p.store.(type) {
	case *encryptedFileStore:
		return s.path
	case *plainFileStore:
		return s.path
	default:
		return ""
	}
}
