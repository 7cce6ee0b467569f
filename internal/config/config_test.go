package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/pkg/account"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfig_Load_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: "/nonexistent/path/tokenbroker.yaml", Logger: logging.Nop()}
	require.NoError(t, cfg.Load())

	assert.Equal(t, CacheModePersistent, cfg.Settings.TokenCache.Mode)
	assert.Equal(t, account.DefaultEnvironment, cfg.Settings.DefaultEnvironment)
	assert.Equal(t, "msal.cache", filepath.Base(cfg.Settings.CachePath()))
	assert.False(t, cfg.Settings.TokenCache.AllowUnsafeStorage)
}

func TestConfig_Load_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "token_cache:\n  mode: [[[\n")
	cfg := &Config{Path: path, Logger: logging.Nop()}

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}

func TestConfig_Load_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: 2\n")
	cfg := &Config{Path: path, Logger: logging.Nop()}

	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestConfig_Load_Settings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, `
default_environment: Stack
token_cache:
  mode: Memory
  directory: `+dir+`
  allow_unsafe_storage: true
environments:
  - name: Stack
    authority: https://login.stack.local/
    api_endpoint: https://api.stack.local/
`)
	cfg := &Config{Path: path, Logger: logging.Nop()}
	require.NoError(t, cfg.Load())

	s := cfg.Settings
	assert.Equal(t, CacheModeMemory, s.TokenCache.Mode)
	assert.Equal(t, filepath.Join(dir, "msal.cache"), s.CachePath())
	assert.True(t, s.TokenCache.AllowUnsafeStorage)
	require.Len(t, s.Environments, 1)

	table := account.NewEnvironmentTable()
	require.NoError(t, s.ApplyEnvironments(table))
	env, ok := table.Get("stack")
	require.True(t, ok)
	assert.Equal(t, account.UserDefined, env.Type)
}

func TestConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown_cache_mode", "token_cache:\n  mode: floppy\n", "token_cache.mode"},
		{"environment_without_name", "environments:\n  - authority: https://x/\n", "environments[0].name"},
		{"environment_without_authority", "environments:\n  - name: X\n", "environments[0].authority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{Path: writeConfig(t, tt.body), Logger: logging.Nop()}
			err := cfg.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfig_ApplyEnvironmentsRejectsBuiltInNames(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.Environments = []EnvironmentSettings{{Name: "AzureCloud", Authority: "https://evil/"}}
	err := s.ApplyEnvironments(account.NewEnvironmentTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in")
}

func TestConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvCacheMode, "memory")
	t.Setenv(EnvCacheDir, dir)
	t.Setenv(EnvAllowUnsafeCache, "true")
	t.Setenv(EnvEnvironment, "AzureChinaCloud")

	cfg := &Config{Path: filepath.Join(dir, "missing.yaml"), Logger: logging.Nop()}
	require.NoError(t, cfg.Load())

	assert.Equal(t, CacheModeMemory, cfg.Settings.TokenCache.Mode)
	assert.Equal(t, dir, cfg.Settings.TokenCache.Directory)
	assert.True(t, cfg.Settings.TokenCache.AllowUnsafeStorage)
	assert.Equal(t, "AzureChinaCloud", cfg.Settings.DefaultEnvironment)
}

func TestConfig_EnvOverrideInvalidBool(t *testing.T) {
	t.Setenv(EnvAllowUnsafeCache, "perhaps")

	cfg := &Config{Path: filepath.Join(t.TempDir(), "missing.yaml"), Logger: logging.Nop()}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAllowUnsafeCache)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tokenbroker.yaml")
	cfg := &Config{Path: path, Logger: logging.Nop()}
	require.NoError(t, cfg.Load())

	cfg.Settings.SetEnvironment(EnvironmentSettings{Name: "Stack", Authority: "https://a/"})
	cfg.Settings.SetEnvironment(EnvironmentSettings{Name: "stack", Authority: "https://b/"})
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded := &Config{Path: path, Logger: logging.Nop()}
	require.NoError(t, reloaded.Load())
	require.Len(t, reloaded.Settings.Environments, 1)
	assert.Equal(t, "https://b/", reloaded.Settings.Environments[0].Authority)

	assert.True(t, reloaded.Settings.RemoveEnvironment("STACK"))
	assert.False(t, reloaded.Settings.RemoveEnvironment("STACK"))
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, "tokenbroker", filepath.Base(filepath.Dir(path)))
}
