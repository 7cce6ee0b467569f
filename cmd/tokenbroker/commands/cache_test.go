package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tokenbroker/internal/config"
	"github.com/systmms/tokenbroker/tests/fakes"
	"github.com/systmms/tokenbroker/tests/testutil"
)

func TestCacheVerifyMemory(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)

	res := c.run(t, "", "cache", "verify")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Storage:   memory")
	assert.Contains(t, res.stdout, "Status:    ok")
	assert.NotContains(t, res.stdout, "Directory:")
}

func TestCacheVerifyKeyring(t *testing.T) {
	t.Parallel()
	builder := testutil.NewTestConfig(t).WithCacheMode(config.CacheModePersistent)
	c := newCLI(t, builder)

	res := c.run(t, "", "cache", "verify")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Storage:   keyring")
	assert.Contains(t, res.stdout, "Encrypted: true")
	assert.Contains(t, res.stdout, "Status:    ok")
}

func TestCacheHeadlessWithoutFallback(t *testing.T) {
	t.Parallel()
	builder := testutil.NewTestConfig(t).WithCacheMode(config.CacheModePersistent)
	c := newCLI(t, builder)
	kc := fakes.NewFakeKeychainClient()
	kc.Headless = true
	c.app.Keychain = kc

	res := c.run(t, "", "cache", "verify")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "secure token cache storage is unavailable")
}

func TestCacheHeadlessWithFallback(t *testing.T) {
	t.Parallel()
	builder := testutil.NewTestConfig(t).
		WithCacheMode(config.CacheModePersistent).
		WithUnsafeStorage(true)
	c := newCLI(t, builder)
	kc := fakes.NewFakeKeychainClient()
	kc.Headless = true
	c.app.Keychain = kc

	res := c.run(t, "", "cache", "verify")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Storage:   file")
	assert.Contains(t, res.stdout, "Encrypted: false")
}

func TestCacheClear(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)

	res := c.run(t, "", "cache", "clear")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Token cache cleared")
}
