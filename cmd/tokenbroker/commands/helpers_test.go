package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systmms/tokenbroker/internal/config"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/tests/fakes"
	"github.com/systmms/tokenbroker/tests/testutil"
)

type cli struct {
	app     *App
	client  *fakes.FakeIdentityClient
	factory *fakes.FakeIdentityFactory
	config  string
}

// newCLI returns an App over fake identity clients and a memory token cache.
func newCLI(t *testing.T, builder *testutil.TestConfigBuilder) *cli {
	t.Helper()
	if builder == nil {
		builder = testutil.NewTestConfig(t).WithCacheMode(config.CacheModeMemory)
	}
	client := &fakes.FakeIdentityClient{}
	factory := &fakes.FakeIdentityFactory{Client: client}

	app := NewApp()
	app.Factory = factory
	app.Keychain = fakes.NewFakeKeychainClient()
	return &cli{app: app, client: client, factory: factory, config: builder.Write()}
}

type runResult struct {
	stdout string
	stderr string
	err    error
}

// run executes args with stdin and closes the app afterwards.
func (c *cli) run(t *testing.T, stdin string, args ...string) runResult {
	t.Helper()
	root := NewRootCommand(c.app, "test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", c.config, "--no-color"}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	require.NoError(t, c.app.Close())
	return runResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

func signedIn(home, tenant, username string) identity.Result {
	return identity.Result{
		AccessToken: "at-" + username,
		ExpiresOn:   time.Now().Add(time.Hour),
		Account:     identity.Account{HomeAccountID: home, PreferredUsername: username, Realm: tenant},
		Authority:   "https://login.microsoftonline.com",
		TenantID:    tenant,
		Username:    username,
	}
}
