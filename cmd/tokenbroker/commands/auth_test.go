package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tokenbroker/internal/config"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/pkg/account"
	"github.com/systmms/tokenbroker/tests/testutil"
)

func TestTokenSilentJSON(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)
	c.client.SilentResult = signedIn("oid.tid", "tid", "me@contoso.com")

	res := c.run(t, "", "token", "--home-account-id", "oid.tid", "-u", "me@contoso.com", "-t", "tid")
	require.NoError(t, res.err, res.stderr)

	var out tokenOutput
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "at-me@contoso.com", out.AccessToken)
	assert.Equal(t, "Bearer", out.TokenType)
	assert.Equal(t, "oid.tid", out.HomeAccountID)
	assert.Equal(t, "tid", out.TenantID)
	assert.Empty(t, out.RefreshToken)

	silent := c.client.CallsTo("AcquireTokenSilent")
	require.Len(t, silent, 1)
	assert.Equal(t, []string{"https://graph.microsoft.com/.default"}, silent[0].Scopes)
}

func TestTokenRawWithScope(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)
	c.client.SilentResult = signedIn("oid.tid", "tid", "me@contoso.com")

	res := c.run(t, "", "token", "--home-account-id", "oid.tid", "--scope", "https://management.azure.com/.default", "-o", "raw")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "at-me@contoso.com\n", res.stdout)

	silent := c.client.CallsTo("AcquireTokenSilent")
	require.Len(t, silent, 1)
	assert.Equal(t, []string{"https://management.azure.com/.default"}, silent[0].Scopes)
}

func TestTokenRejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)

	res := c.run(t, "", "token", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Unknown output format")
	assert.Empty(t, c.client.Calls())
}

func TestConnectWithPassword(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)
	c.client.PasswordResult = signedIn("oid.tid", "tid", "svc@contoso.com")
	c.client.SilentResult = signedIn("oid.tid", "tid", "svc@contoso.com")

	res := c.run(t, "p@ss\n", "connect", "-u", "svc@contoso.com", "--password")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Connected as svc@contoso.com")
	assert.Contains(t, res.stdout, "Home account id: oid.tid")
	assert.Contains(t, res.stderr, "Password: ")

	pw := c.client.CallsTo("AcquireTokenByUsernamePassword")
	require.Len(t, pw, 1)
	assert.Equal(t, "p@ss", pw[0].Password)
}

func TestConnectPasswordRequiresUsername(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)

	res := c.run(t, "p@ss\n", "connect", "--password")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--password requires --username")
}

func TestConnectNonInteractiveRefusesToPrompt(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)

	res := c.run(t, "p@ss\n", "--non-interactive", "connect", "-u", "svc@contoso.com", "--password")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "prompting is disabled")
	assert.Empty(t, c.client.Calls())
}

func TestConnectDeviceCodeWritesInstructions(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)
	c.client.DeviceCodeMessage = "To sign in, use a web browser to open https://microsoft.com/devicelogin and enter CODE"
	c.client.DeviceCodeResult = signedIn("oid.tid", "tid", "me@contoso.com")
	c.client.SilentResult = signedIn("oid.tid", "tid", "me@contoso.com")

	res := c.run(t, "", "connect", "--device-code")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, c.client.DeviceCodeMessage)
	assert.Contains(t, res.stdout, "Connected as me@contoso.com")
}

func TestConnectUnknownEnvironment(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)

	res := c.run(t, "", "connect", "-e", "Nowhere")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Unknown environment: Nowhere")
}

func TestDisconnect(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)
	c.client.AccountList = []identity.Account{{HomeAccountID: "oid.tid", PreferredUsername: "me@contoso.com"}}

	res := c.run(t, "", "disconnect", "-u", "ME@contoso.com")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Disconnected ME@contoso.com from AzureCloud")
	require.Len(t, c.client.Removed, 1)
	assert.Equal(t, "oid.tid", c.client.Removed[0].HomeAccountID)

	res = c.run(t, "", "disconnect")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "No account given")
}

func TestWhoami(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-me@contoso.com", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1.0/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"oid","displayName":"Me","userPrincipalName":"me@contoso.com"}`))
	}))
	defer srv.Close()

	builder := testutil.NewTestConfig(t).
		WithCacheMode(config.CacheModeMemory).
		WithEnvironment("Stack", "https://login.contoso.test/").
		WithDefaultEnvironment("Stack")
	builder.Build().Environments[0].APIEndpoint = srv.URL + "/"

	c := newCLI(t, builder)
	c.app.DirectoryTransport = srv.Client()
	c.client.SilentResult = signedIn("oid.tid", "tid", "me@contoso.com")

	res := c.run(t, "", "whoami", "--home-account-id", "oid.tid")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Me\n")
	assert.Contains(t, res.stdout, "User principal name: me@contoso.com")
	assert.Contains(t, res.stdout, "Object id:           oid")

	silent := c.client.CallsTo("AcquireTokenSilent")
	require.Len(t, silent, 1)
	assert.Equal(t, []string{srv.URL + "/.default"}, silent[0].Scopes)
}

func TestBulkToken(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/webapp/bulkaadjtoken/begin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"flowToken":"ft","state":"Started"}`))
	})
	mux.HandleFunc("/webapp/bulkaadjtoken/poll", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"CompleteSuccess","resultData":"{\"refresh_token\":\"bulk-rt\"}"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	builder := testutil.NewTestConfig(t).
		WithCacheMode(config.CacheModeMemory).
		WithEnvironment("Stack", srv.URL+"/").
		WithDefaultEnvironment("Stack")
	c := newCLI(t, builder)
	c.app.Endpoint = identity.NewEndpointClient(logging.Nop(),
		identity.WithHTTPClient(srv.Client()),
		identity.WithPollInterval(time.Millisecond))
	c.client.SilentResult = signedIn("oid.tid", "tid", "admin@contoso.com")

	res := c.run(t, "", "bulk-token", "--home-account-id", "oid.tid", "--validity", "24h")
	require.NoError(t, res.err, res.stderr)

	var out struct {
		RefreshToken string    `json:"refreshToken"`
		ExpiresOn    time.Time `json:"expiresOn"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "bulk-rt", out.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), out.ExpiresOn, time.Minute)

	cfgs := c.factory.Configs()
	require.NotEmpty(t, cfgs)
	assert.Equal(t, identity.BulkTokenClientID, cfgs[0].ClientID)
}

func TestMetricsTextfile(t *testing.T) {
	t.Parallel()
	c := newCLI(t, nil)
	c.client.SilentResult = signedIn("oid.tid", "tid", "me@contoso.com")
	path := filepath.Join(t.TempDir(), "tokenbroker.prom")

	res := c.run(t, "", "--metrics-textfile", path, "token", "--home-account-id", "oid.tid")
	require.NoError(t, res.err, res.stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tokenbroker_authentications_total{flow="silent",outcome="success"} 1`)
}

func TestEnvironmentDefaultFromConfig(t *testing.T) {
	t.Parallel()
	builder := testutil.NewTestConfig(t).
		WithCacheMode(config.CacheModeMemory).
		WithEnvironment("Stack", "https://login.contoso.test/").
		WithDefaultEnvironment("Stack")
	c := newCLI(t, builder)
	c.client.SilentResult = signedIn("oid.tid", "tid", "me@contoso.com")

	res := c.run(t, "", "token", "--home-account-id", "oid.tid")
	require.NoError(t, res.err, res.stderr)

	cfgs := c.factory.Configs()
	require.NotEmpty(t, cfgs)
	assert.Equal(t, "https://login.contoso.test/organizations", cfgs[0].Authority)
	assert.Equal(t, account.DefaultApplicationID, cfgs[0].ClientID)
}
