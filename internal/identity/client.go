package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"

	"github.com/systmms/tokenbroker/pkg/token"
)

// MFAClaims requests multi-factor step-up from the identity provider.
const MFAClaims = `{"access_token":{"acr":{"values":["urn:microsoft:policies:mfa"]}}}`

// Account is an account known to a client's token cache.
type Account = public.Account

// Result is a completed token acquisition.
type Result struct {
	AccessToken string
	ExpiresOn   time.Time
	Account     Account
	// Authority is scheme://host of the issuing authority.
	Authority string
	ClientID  string
	TenantID  string
	Username  string
}

// Record returns the identity record describing the authenticated principal.
func (r Result) Record() token.Record {
	return token.NewRecord(r.Authority, r.ClientID, r.Account.HomeAccountID, r.TenantID, r.Username)
}

// AccessTokenValue returns the raw token of the result.
func (r Result) AccessTokenValue() token.AccessToken {
	return token.AccessToken{Token: r.AccessToken, Type: token.DefaultTokenType, ExpiresOn: r.ExpiresOn}
}

// SilentOptions configure AcquireTokenSilent.
type SilentOptions struct {
	Account Account
	Claims  string
}

// DeviceCodeOptions configure AcquireTokenByDeviceCode.
type DeviceCodeOptions struct {
	Claims string
}

// InteractiveOptions configure AcquireTokenInteractive.
type InteractiveOptions struct {
	RedirectURI string
	LoginHint   string
	Claims      string
	// OpenURL is called with the sign-in URL instead of the default browser
	// launcher when set.
	OpenURL func(url string) error
}

// DeviceCode is the challenge of a pending device code flow.
type DeviceCode struct {
	Message         string
	UserCode        string
	VerificationURL string
	ExpiresOn       time.Time

	wait func(ctx context.Context) (Result, error)
}

// NewDeviceCode builds a challenge whose Wait calls wait.
func NewDeviceCode(message, userCode, verificationURL string, expiresOn time.Time, wait func(ctx context.Context) (Result, error)) DeviceCode {
	return DeviceCode{
		Message:         message,
		UserCode:        userCode,
		VerificationURL: verificationURL,
		ExpiresOn:       expiresOn,
		wait:            wait,
	}
}

// Wait blocks until the user approves the sign-in out of band, the code
// expires or ctx is done.
func (d DeviceCode) Wait(ctx context.Context) (Result, error) {
	if d.wait == nil {
		return Result{}, fmt.Errorf("device code has no pending flow")
	}
	return d.wait(ctx)
}

// Client acquires tokens for a single application id and authority.
type Client interface {
	Accounts(ctx context.Context) ([]Account, error)
	RemoveAccount(ctx context.Context, account Account) error
	AcquireTokenSilent(ctx context.Context, scopes []string, opts SilentOptions) (Result, error)
	AcquireTokenByUsernamePassword(ctx context.Context, scopes []string, username, password string) (Result, error)
	AcquireTokenByDeviceCode(ctx context.Context, scopes []string, opts DeviceCodeOptions) (DeviceCode, error)
	AcquireTokenInteractive(ctx context.Context, scopes []string, opts InteractiveOptions) (Result, error)
}

// ClientConfig describes the client to build. Cache is set by token cache
// providers through SetCache before the client is constructed.
type ClientConfig struct {
	ClientID  string
	Authority string
	Cache     cache.ExportReplace
}

// SetCache wires a cache accessor into the client configuration.
func (c *ClientConfig) SetCache(accessor cache.ExportReplace) {
	c.Cache = accessor
}

// Factory builds identity clients.
type Factory interface {
	New(cfg ClientConfig) (Client, error)
}

// AccountFromRecord reconstructs the cache account a record refers to.
func AccountFromRecord(r token.Record) Account {
	return Account{
		HomeAccountID:     r.HomeAccountID,
		Environment:       hostOf(r.Authority),
		Realm:             r.TenantID,
		PreferredUsername: r.Username,
		AuthorityType:     "MSSTS",
	}
}

// AuthorityHost returns scheme://host of an authority URL.
func AuthorityHost(authority string) string {
	u, err := url.Parse(authority)
	if err != nil || u.Host == "" {
		return strings.TrimRight(authority, "/")
	}
	return u.Scheme + "://" + u.Host
}

func hostOf(authority string) string {
	u, err := url.Parse(authority)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(authority, "https://"), "http://")
	}
	return u.Host
}
