package authn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/internal/tokencache"
	"github.com/systmms/tokenbroker/pkg/account"
	"github.com/systmms/tokenbroker/tests/fakes"
)

type harness struct {
	sess    *session.Session
	client  *fakes.FakeIdentityClient
	factory *fakes.FakeIdentityFactory
	host    *fakes.FakeHost
	cache   *tokencache.MemoryProvider
	env     account.Environment
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sess := session.New(logging.Nop())
	client := &fakes.FakeIdentityClient{}
	factory := &fakes.FakeIdentityFactory{Client: client}
	sess.Factory = factory

	host := &fakes.FakeHost{}
	sess.SetHost(host)

	cache := tokencache.NewMemoryProvider(factory, nil)
	t.Cleanup(cache.Close)
	sess.RegisterComponent(session.TokenCacheProvider, cache)

	env, ok := sess.Environments.Get(account.DefaultEnvironment)
	require.True(t, ok)

	return &harness{sess: sess, client: client, factory: factory, host: host, cache: cache, env: env}
}
