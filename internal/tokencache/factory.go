package tokencache

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/tokenbroker/internal/config"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

// NewFromSettings builds the provider selected by settings.
func NewFromSettings(ctx context.Context, settings config.TokenCacheSettings, deps Dependencies) (Provider, error) {
	deps.defaults()

	switch strings.ToLower(settings.Mode) {
	case config.CacheModeMemory:
		deps.Logger.Debug("Using in-memory token cache")
		return NewMemoryProvider(deps.Factory, deps.Logger), nil
	case config.CacheModePersistent, "":
		p, err := NewPersistentProvider(ctx, PersistenceOptions{
			Directory:          settings.Directory,
			FileName:           settings.FileName,
			KeyringService:     settings.KeyringService,
			AllowUnsafeStorage: settings.AllowUnsafeStorage,
		}, deps)
		if err != nil {
			return nil, err
		}
		deps.Logger.Debug("Using %s token cache at %s", p.PersistenceOptions().Tier, p.Path())
		return p, nil
	default:
		return nil, tberrors.Configuration(nil, "unknown token cache mode %q", settings.Mode).
			WithSuggestion(fmt.Sprintf("Use '%s' or '%s'", config.CacheModeMemory, config.CacheModePersistent))
	}
}
