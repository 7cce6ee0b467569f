package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/pkg/account"
	"gopkg.in/yaml.v3"
)

// Cache modes
const (
	CacheModeMemory     = "memory"
	CacheModePersistent = "persistent"
)

// Environment variable overrides
const (
	EnvCacheMode        = "TOKENBROKER_CACHE_MODE"
	EnvCacheDir         = "TOKENBROKER_CACHE_DIR"
	EnvAllowUnsafeCache = "TOKENBROKER_ALLOW_UNSAFE_CACHE"
	EnvEnvironment      = "TOKENBROKER_ENVIRONMENT"
)

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Settings       *Settings
}

// Settings represents the optional tokenbroker.yaml structure
type Settings struct {
	Version            int                   `yaml:"version"`
	DefaultEnvironment string                `yaml:"default_environment,omitempty"`
	TokenCache         TokenCacheSettings    `yaml:"token_cache"`
	Environments       []EnvironmentSettings `yaml:"environments,omitempty"`
}

// TokenCacheSettings selects and configures the token cache provider
type TokenCacheSettings struct {
	Mode               string `yaml:"mode"`
	Directory          string `yaml:"directory,omitempty"`
	FileName           string `yaml:"file_name,omitempty"`
	KeyringService     string `yaml:"keyring_service,omitempty"`
	AllowUnsafeStorage bool   `yaml:"allow_unsafe_storage,omitempty"`
}

// EnvironmentSettings declares a user-defined environment
type EnvironmentSettings struct {
	Name          string `yaml:"name"`
	Authority     string `yaml:"authority"`
	ApplicationID string `yaml:"application_id,omitempty"`
	APIEndpoint   string `yaml:"api_endpoint,omitempty"`
}

// DefaultSettings returns the settings used when no file is present
func DefaultSettings() *Settings {
	return &Settings{
		DefaultEnvironment: account.DefaultEnvironment,
		TokenCache: TokenCacheSettings{
			Mode:           CacheModePersistent,
			Directory:      defaultCacheDir(),
			FileName:       "msal.cache",
			KeyringService: "tokenbroker",
		},
	}
}

// DefaultPath returns the settings file used when --config is not given
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tokenbroker", "config.yaml")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tokenbroker")
}

// Load reads and parses the settings file. A missing file yields defaults.
func (c *Config) Load() error {
	settings := DefaultSettings()

	data, err := os.ReadFile(c.Path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return tberrors.ConfigError{
				Message:    "invalid YAML syntax in configuration file",
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
			}
		}
	case os.IsNotExist(err):
		if c.Logger != nil {
			c.Logger.Debug("No configuration file at %s, using defaults", c.Path)
		}
	default:
		return tberrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if settings.Version != 0 {
		return tberrors.ConfigError{
			Field:      "version",
			Value:      settings.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your tokenbroker.yaml file",
		}
	}

	if err := settings.applyEnv(); err != nil {
		return err
	}
	settings.fillDefaults()
	if err := settings.Validate(); err != nil {
		return err
	}

	c.Settings = settings
	return nil
}

// applyEnv overlays TOKENBROKER_* environment variables
func (s *Settings) applyEnv() error {
	if v := os.Getenv(EnvCacheMode); v != "" {
		s.TokenCache.Mode = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		s.TokenCache.Directory = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		s.DefaultEnvironment = v
	}
	if v := os.Getenv(EnvAllowUnsafeCache); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return tberrors.ConfigError{
				Field:      EnvAllowUnsafeCache,
				Value:      v,
				Message:    "expected a boolean",
				Suggestion: "Use true or false",
			}
		}
		s.TokenCache.AllowUnsafeStorage = b
	}
	return nil
}

func (s *Settings) fillDefaults() {
	defaults := DefaultSettings()
	if s.DefaultEnvironment == "" {
		s.DefaultEnvironment = defaults.DefaultEnvironment
	}
	if s.TokenCache.Mode == "" {
		s.TokenCache.Mode = defaults.TokenCache.Mode
	}
	s.TokenCache.Mode = strings.ToLower(s.TokenCache.Mode)
	if s.TokenCache.Directory == "" {
		s.TokenCache.Directory = defaults.TokenCache.Directory
	}
	if s.TokenCache.FileName == "" {
		s.TokenCache.FileName = defaults.TokenCache.FileName
	}
	if s.TokenCache.KeyringService == "" {
		s.TokenCache.KeyringService = defaults.TokenCache.KeyringService
	}
}

// Validate checks the settings for values the broker cannot act on
func (s *Settings) Validate() error {
	switch s.TokenCache.Mode {
	case CacheModeMemory, CacheModePersistent:
	default:
		return tberrors.ConfigError{
			Field:      "token_cache.mode",
			Value:      s.TokenCache.Mode,
			Message:    "unknown cache mode",
			Suggestion: fmt.Sprintf("Use '%s' or '%s'", CacheModeMemory, CacheModePersistent),
		}
	}

	for i, env := range s.Environments {
		if env.Name == "" {
			return tberrors.ConfigError{
				Field:      fmt.Sprintf("environments[%d].name", i),
				Message:    "environment name is required",
				Suggestion: "Give every user-defined environment a unique name",
			}
		}
		if env.Authority == "" {
			return tberrors.ConfigError{
				Field:      fmt.Sprintf("environments[%d].authority", i),
				Value:      env.Name,
				Message:    "environment authority is required",
				Suggestion: "Set the authority URL, e.g. https://login.microsoftonline.com/",
			}
		}
	}
	return nil
}

// CachePath returns the full path of the token cache file
func (s *Settings) CachePath() string {
	return filepath.Join(s.TokenCache.Directory, s.TokenCache.FileName)
}

// ApplyEnvironments registers the user-defined environments in table
func (s *Settings) ApplyEnvironments(table *account.EnvironmentTable) error {
	for _, env := range s.Environments {
		err := table.Add(account.Environment{
			Name:                     env.Name,
			ActiveDirectoryAuthority: env.Authority,
			ApplicationID:            env.ApplicationID,
			APIEndpoint:              env.APIEndpoint,
		})
		if err != nil {
			return tberrors.ConfigError{
				Field:      "environments",
				Value:      env.Name,
				Message:    err.Error(),
				Suggestion: "Rename the environment; built-in names are reserved",
			}
		}
	}
	return nil
}

// SetEnvironment adds or replaces a user-defined environment
func (s *Settings) SetEnvironment(env EnvironmentSettings) {
	for i := range s.Environments {
		if strings.EqualFold(s.Environments[i].Name, env.Name) {
			s.Environments[i] = env
			return
		}
	}
	s.Environments = append(s.Environments, env)
}

// RemoveEnvironment removes a user-defined environment and reports whether it existed
func (s *Settings) RemoveEnvironment(name string) bool {
	for i := range s.Environments {
		if strings.EqualFold(s.Environments[i].Name, name) {
			s.Environments = append(s.Environments[:i], s.Environments[i+1:]...)
			return true
		}
	}
	return false
}

// Save writes the settings back to Path
func (c *Config) Save() error {
	if c.Settings == nil {
		return tberrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	data, err := yaml.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(c.Path, data, 0o600); err != nil {
		return tberrors.UserError{
			Message:    "Failed to write configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}
	return nil
}
