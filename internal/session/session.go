// Package session holds the process-wide state shared by commands: the
// registered components, the active host and the current account context.
package session

import (
	"sync"

	"github.com/systmms/tokenbroker/internal/bridge"
	"github.com/systmms/tokenbroker/internal/config"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/metrics"
	"github.com/systmms/tokenbroker/internal/tokencache"
	"github.com/systmms/tokenbroker/pkg/account"
)

// ComponentKind names a registered component.
type ComponentKind string

// Component kinds
const (
	TokenCacheProvider    ComponentKind = "token-cache-provider"
	ConfigurationProvider ComponentKind = "configuration-provider"
)

// Context is the account and environment last authenticated.
type Context struct {
	Account     *account.Account
	Environment account.Environment
}

// Session is created once per process and passed by pointer.
type Session struct {
	Environments *account.EnvironmentTable
	Logger       *logging.Logger
	Metrics      *metrics.Recorder
	Factory      identity.Factory
	Endpoint     *identity.EndpointClient

	mu         sync.RWMutex
	components map[ComponentKind]interface{}
	host       bridge.Host
	current    *Context
}

// New creates a session with the built-in environments and real identity
// clients. Fields may be replaced before first use.
func New(logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{
		Environments: account.NewEnvironmentTable(),
		Logger:       logger,
		Factory:      identity.MSALFactory{},
		Endpoint:     identity.NewEndpointClient(logger),
		components:   map[ComponentKind]interface{}{},
	}
}

// RegisterComponent registers c under kind, replacing any previous one.
// A nil c unregisters.
func (s *Session) RegisterComponent(kind ComponentKind, c interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.components == nil {
		s.components = map[ComponentKind]interface{}{}
	}
	if c == nil {
		delete(s.components, kind)
		return
	}
	s.components[kind] = c
}

// TryGetComponent returns the component registered under kind.
func (s *Session) TryGetComponent(kind ComponentKind) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[kind]
	return c, ok
}

// TokenCache returns the registered token cache provider.
func (s *Session) TokenCache() (tokencache.Provider, bool) {
	c, ok := s.TryGetComponent(TokenCacheProvider)
	if !ok {
		return nil, false
	}
	p, ok := c.(tokencache.Provider)
	return p, ok
}

// Configuration returns the registered configuration.
func (s *Session) Configuration() (*config.Config, bool) {
	c, ok := s.TryGetComponent(ConfigurationProvider)
	if !ok {
		return nil, false
	}
	cfg, ok := c.(*config.Config)
	return cfg, ok
}

// Host returns the active host.
func (s *Session) Host() bridge.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

// SetHost installs h and returns the previous host.
func (s *Session) SetHost(h bridge.Host) bridge.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.host
	s.host = h
	return prev
}

// CurrentContext returns a copy of the current context, or nil.
func (s *Session) CurrentContext() *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return &Context{Account: s.current.Account.Clone(), Environment: s.current.Environment}
}

// SetContext makes acct the current account.
func (s *Session) SetContext(acct *account.Account, env account.Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Context{Account: acct.Clone(), Environment: env}
}

// ClearContext forgets the current account.
func (s *Session) ClearContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Environment resolves name, falling back to the configured default and then
// the built-in default.
func (s *Session) Environment(name string) (account.Environment, bool) {
	if name == "" {
		name = account.DefaultEnvironment
		if cfg, ok := s.Configuration(); ok && cfg.Settings != nil && cfg.Settings.DefaultEnvironment != "" {
			name = cfg.Settings.DefaultEnvironment
		}
	}
	return s.Environments.Get(name)
}

var _ bridge.Slot = (*Session)(nil)
