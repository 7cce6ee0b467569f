// Package testutil provides test utilities and helpers for tokenbroker tests.
//
// This package contains shared test infrastructure: settings builders,
// captured loggers and assertions.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/tokenbroker/internal/config"
)

// TestConfigBuilder provides a fluent API for building tokenbroker.yaml files.
//
// The token cache directory defaults to a temporary directory so tests never
// touch the real user cache.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithCacheMode(config.CacheModeMemory).
//	    WithEnvironment("Stack", "https://login.contoso.test/").
//	    Write()
type TestConfigBuilder struct {
	settings *config.Settings
	tempDir  string
	t        *testing.T
}

// NewTestConfig creates a builder starting from the default settings.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	tempDir := t.TempDir()
	settings := config.DefaultSettings()
	settings.TokenCache.Directory = filepath.Join(tempDir, "cache")

	return &TestConfigBuilder{
		settings: settings,
		tempDir:  tempDir,
		t:        t,
	}
}

// WithCacheMode selects the token cache mode.
func (b *TestConfigBuilder) WithCacheMode(mode string) *TestConfigBuilder {
	b.settings.TokenCache.Mode = mode
	return b
}

// WithUnsafeStorage allows the unprotected cache fallback.
func (b *TestConfigBuilder) WithUnsafeStorage(allow bool) *TestConfigBuilder {
	b.settings.TokenCache.AllowUnsafeStorage = allow
	return b
}

// WithDefaultEnvironment sets the default environment name.
func (b *TestConfigBuilder) WithDefaultEnvironment(name string) *TestConfigBuilder {
	b.settings.DefaultEnvironment = name
	return b
}

// WithEnvironment declares a user-defined environment.
func (b *TestConfigBuilder) WithEnvironment(name, authority string) *TestConfigBuilder {
	b.settings.SetEnvironment(config.EnvironmentSettings{Name: name, Authority: authority})
	return b
}

// Build returns the in-memory settings.
func (b *TestConfigBuilder) Build() *config.Settings {
	return b.settings
}

// Dir returns the builder's temporary directory.
func (b *TestConfigBuilder) Dir() string {
	return b.tempDir
}

// Write writes tokenbroker.yaml into the temporary directory and returns its
// path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, "tokenbroker.yaml")
	data, err := yaml.Marshal(b.settings)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// WriteTestConfig writes a raw YAML string to a temporary tokenbroker.yaml.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tokenbroker.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
