package tokencache_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/systmms/tokenbroker/internal/config"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/metrics"
	"github.com/systmms/tokenbroker/internal/tokencache"
	"github.com/systmms/tokenbroker/pkg/account"
	"github.com/systmms/tokenbroker/tests/fakes"
	tbtestutil "github.com/systmms/tokenbroker/tests/testutil"
)

func persistenceOptions(t *testing.T, allowUnsafe bool) tokencache.PersistenceOptions {
	t.Helper()
	return tokencache.PersistenceOptions{
		Directory:          t.TempDir(),
		FileName:           "msal.cache",
		KeyringService:     "tokenbroker-test",
		AllowUnsafeStorage: allowUnsafe,
	}
}

func TestPersistentProviderUsesKeyringWhenAvailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kc := fakes.NewFakeKeychainClient()
	opts := persistenceOptions(t, false)

	p, err := tokencache.NewPersistentProvider(ctx, opts, tokencache.Dependencies{Keychain: kc})
	require.NoError(t, err)

	got := p.PersistenceOptions()
	assert.Equal(t, tokencache.TierKeyring, got.Tier)
	assert.True(t, got.Encrypted)
	assert.Equal(t, filepath.Join(opts.Directory, "msal.cache"), p.Path())
	assert.True(t, kc.Has("tokenbroker-test", "cache-key:msal.cache"))
	assert.NoError(t, p.VerifyPersistence(ctx))

	require.NoError(t, p.Update(ctx, func(doc tokencache.Document) error {
		doc.PutRefreshToken(tokencache.RefreshTokenEntry{HomeAccountID: "h.t", ClientID: "app", Secret: "rt"})
		return nil
	}))

	reopened, err := tokencache.NewPersistentProvider(ctx, opts, tokencache.Dependencies{Keychain: kc})
	require.NoError(t, err)
	secret, err := reopened.RefreshToken(ctx, "app", "h.t")
	require.NoError(t, err)
	assert.Equal(t, "rt", secret)
}

func TestPersistentProviderFailsWithoutUnsafeFallback(t *testing.T) {
	t.Parallel()

	kc := fakes.NewFakeKeychainClient()
	kc.Headless = true
	rec := metrics.NewRecorder()

	_, err := tokencache.NewPersistentProvider(context.Background(), persistenceOptions(t, false),
		tokencache.Dependencies{Keychain: kc, Metrics: rec})
	require.Error(t, err)
	assert.True(t, tberrors.IsCategory(err, tberrors.CategoryConfiguration))
	assert.ErrorIs(t, err, tokencache.ErrKeychainHeadless)
	count, gerr := testutil.GatherAndCount(rec.Registry(), "tokenbroker_cache_fallbacks_total")
	require.NoError(t, gerr)
	assert.Zero(t, count)
}

func TestPersistentProviderFallsBackToUnprotectedFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kc := fakes.NewFakeKeychainClient()
	kc.Available = false
	rec := metrics.NewRecorder()
	tl := tbtestutil.NewTestLogger(t)
	opts := persistenceOptions(t, true)

	p, err := tokencache.NewPersistentProvider(ctx, opts,
		tokencache.Dependencies{Keychain: kc, Metrics: rec, Logger: tl.Logger})
	require.NoError(t, err)

	got := p.PersistenceOptions()
	assert.Equal(t, tokencache.TierFile, got.Tier)
	assert.False(t, got.Encrypted)
	assert.True(t, strings.HasSuffix(p.Path(), ".unprotected"))

	assert.Len(t, tl.Messages(zapcore.WarnLevel), 1)
	tl.AssertContains(t, "falling back to an unprotected file")

	expected := `
# HELP tokenbroker_cache_fallbacks_total Total number of token cache storage fallbacks
# TYPE tokenbroker_cache_fallbacks_total counter
tokenbroker_cache_fallbacks_total{from="keyring",to="file"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "tokenbroker_cache_fallbacks_total"))

	require.NoError(t, p.Update(ctx, func(doc tokencache.Document) error {
		doc.PutRefreshToken(tokencache.RefreshTokenEntry{HomeAccountID: "h.t", ClientID: account.DefaultApplicationID, Secret: "rt"})
		return nil
	}))
	data, err := p.CacheData(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "h.t-login.windows.net-refreshtoken-1--")
}

func TestPersistentProviderValidateFailureFallsBack(t *testing.T) {
	t.Parallel()

	kc := fakes.NewFakeKeychainClient()
	kc.ValidateErr = tokencache.ErrKeychainAccessDenied

	p, err := tokencache.NewPersistentProvider(context.Background(), persistenceOptions(t, true),
		tokencache.Dependencies{Keychain: kc})
	require.NoError(t, err)
	assert.Equal(t, tokencache.TierFile, p.PersistenceOptions().Tier)
}

func TestNewFromSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p, err := tokencache.NewFromSettings(ctx, config.TokenCacheSettings{Mode: "Memory"}, tokencache.Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &tokencache.MemoryProvider{}, p)

	p, err = tokencache.NewFromSettings(ctx, config.TokenCacheSettings{
		Mode:           config.CacheModePersistent,
		Directory:      t.TempDir(),
		FileName:       "msal.cache",
		KeyringService: "svc",
	}, tokencache.Dependencies{Keychain: fakes.NewFakeKeychainClient()})
	require.NoError(t, err)
	assert.IsType(t, &tokencache.PersistentProvider{}, p)

	_, err = tokencache.NewFromSettings(ctx, config.TokenCacheSettings{Mode: "cloud"}, tokencache.Dependencies{})
	require.Error(t, err)
	assert.True(t, tberrors.IsCategory(err, tberrors.CategoryConfiguration))
	assert.Contains(t, err.Error(), `"cloud"`)
}

func TestRemoveAccount(t *testing.T) {
	t.Parallel()

	env, ok := account.NewEnvironmentTable().Get(account.DefaultEnvironment)
	require.True(t, ok)

	newClient := func() *fakes.FakeIdentityClient {
		return &fakes.FakeIdentityClient{AccountList: []identity.Account{
			{HomeAccountID: "uid1.utid", PreferredUsername: "Alice@Example.com"},
			{HomeAccountID: "uid2.utid", PreferredUsername: "bob@example.com"},
		}}
	}

	t.Run("matches username case-insensitively", func(t *testing.T) {
		t.Parallel()
		client := newClient()
		factory := &fakes.FakeIdentityFactory{Client: client}
		p := tokencache.NewMemoryProvider(factory, nil)

		acct := account.New(account.User, "utid", "alice@example.com")
		require.NoError(t, p.RemoveAccount(context.Background(), acct, env))

		require.Len(t, client.Removed, 1)
		assert.Equal(t, "uid1.utid", client.Removed[0].HomeAccountID)

		cfgs := factory.Configs()
		require.Len(t, cfgs, 1)
		assert.Equal(t, account.DefaultApplicationID, cfgs[0].ClientID)
		assert.Equal(t, "https://login.microsoftonline.com/utid", cfgs[0].Authority)
		assert.NotNil(t, cfgs[0].Cache)
	})

	t.Run("matches home account id", func(t *testing.T) {
		t.Parallel()
		client := newClient()
		p := tokencache.NewMemoryProvider(&fakes.FakeIdentityFactory{Client: client}, nil)

		acct := account.New(account.User, "", "")
		acct.SetProperty(account.PropertyHomeAccountID, "uid2.utid")
		acct.SetProperty(account.PropertyApplicationID, "custom-app")
		require.NoError(t, p.RemoveAccount(context.Background(), acct, env))

		require.Len(t, client.Removed, 1)
		assert.Equal(t, "bob@example.com", client.Removed[0].PreferredUsername)
		assert.Equal(t, "custom-app", client.CallsTo("Accounts")[0].ClientID)
	})

	t.Run("ignores non-user accounts", func(t *testing.T) {
		t.Parallel()
		factory := &fakes.FakeIdentityFactory{Client: newClient()}
		p := tokencache.NewMemoryProvider(factory, nil)

		acct := account.New(account.PreIssuedToken, "", "alice@example.com")
		require.NoError(t, p.RemoveAccount(context.Background(), acct, env))
		assert.Empty(t, factory.Configs())
	})
}
