package commands

import (
	"context"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/config"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/metrics"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/internal/tokencache"
)

// App carries the global flags and lazily builds the session the commands
// share.
type App struct {
	Config          *config.Config
	MetricsTextfile string

	// Factory, Keychain, Endpoint and DirectoryTransport replace the real
	// collaborators when set.
	Factory            identity.Factory
	Keychain           tokencache.KeychainClient
	Endpoint           *identity.EndpointClient
	DirectoryTransport policy.Transporter

	mu      sync.Mutex
	sess    *session.Session
	cache   tokencache.Provider
	metrics *metrics.Recorder
}

// NewApp returns an App with an empty configuration.
func NewApp() *App {
	return &App{Config: &config.Config{}}
}

func (a *App) logger() *logging.Logger {
	if a.Config == nil || a.Config.Logger == nil {
		return logging.Nop()
	}
	return a.Config.Logger
}

// Session loads the configuration and builds the session on first use. The
// command's writers become the session's host.
func (a *App) Session(cmd *cobra.Command) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sess != nil {
		return a.sess, nil
	}
	if a.Config.Settings == nil {
		if a.Config.Path == "" {
			a.Config.Path = config.DefaultPath()
		}
		if err := a.Config.Load(); err != nil {
			return nil, err
		}
	}

	log := a.logger()
	sess := session.New(log)
	a.metrics = metrics.NewRecorder()
	sess.Metrics = a.metrics
	if a.Factory != nil {
		sess.Factory = a.Factory
	}
	if a.Endpoint != nil {
		sess.Endpoint = a.Endpoint
	}
	if err := a.Config.Settings.ApplyEnvironments(sess.Environments); err != nil {
		return nil, err
	}
	sess.RegisterComponent(session.ConfigurationProvider, a.Config)
	sess.SetHost(newTerminalHost(cmd, a.Config.NonInteractive))

	cache, err := tokencache.NewFromSettings(commandContext(cmd), a.Config.Settings.TokenCache, tokencache.Dependencies{
		Keychain: a.Keychain,
		Factory:  sess.Factory,
		Logger:   log,
		Metrics:  a.metrics,
	})
	if err != nil {
		return nil, err
	}
	sess.RegisterComponent(session.TokenCacheProvider, cache)

	a.sess = sess
	a.cache = cache
	return sess, nil
}

// Close releases the token cache and writes the metrics textfile when one
// was requested.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.cache.(interface{ Close() }); ok {
		c.Close()
	}
	a.cache = nil
	a.sess = nil
	return a.metrics.WriteTextfile(a.MetricsTextfile)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
