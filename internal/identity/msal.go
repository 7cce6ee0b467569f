package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// MSALFactory builds clients backed by the MSAL public client.
type MSALFactory struct {
	HTTPClient *http.Client
	// DisableInstanceDiscovery skips authority validation, needed for
	// authorities unknown to the public cloud metadata.
	DisableInstanceDiscovery bool
}

// New builds an MSAL public client for cfg.
func (f MSALFactory) New(cfg ClientConfig) (Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	opts := []public.Option{public.WithAuthority(cfg.Authority)}
	if cfg.Cache != nil {
		opts = append(opts, public.WithCache(cfg.Cache))
	}
	if f.HTTPClient != nil {
		opts = append(opts, public.WithHTTPClient(f.HTTPClient))
	}
	if f.DisableInstanceDiscovery {
		opts = append(opts, public.WithInstanceDiscovery(false))
	}

	c, err := public.New(cfg.ClientID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create public client for %s: %w", cfg.Authority, err)
	}
	return &msalClient{client: c}, nil
}

type msalClient struct {
	client public.Client
}

func (c *msalClient) Accounts(ctx context.Context) ([]Account, error) {
	return c.client.Accounts(ctx)
}

func (c *msalClient) RemoveAccount(ctx context.Context, account Account) error {
	return c.client.RemoveAccount(ctx, account)
}

func (c *msalClient) AcquireTokenSilent(ctx context.Context, scopes []string, opts SilentOptions) (Result, error) {
	silentOpts := []public.AcquireSilentOption{public.WithSilentAccount(opts.Account)}
	if opts.Claims != "" {
		silentOpts = append(silentOpts, public.WithClaims(opts.Claims))
	}
	ar, err := c.client.AcquireTokenSilent(ctx, scopes, silentOpts...)
	if err != nil {
		return Result{}, err
	}
	return fromAuthResult(ar), nil
}

func (c *msalClient) AcquireTokenByUsernamePassword(ctx context.Context, scopes []string, username, password string) (Result, error) {
	ar, err := c.client.AcquireTokenByUsernamePassword(ctx, scopes, username, password)
	if err != nil {
		return Result{}, err
	}
	return fromAuthResult(ar), nil
}

func (c *msalClient) AcquireTokenByDeviceCode(ctx context.Context, scopes []string, opts DeviceCodeOptions) (DeviceCode, error) {
	var dcOpts []public.AcquireByDeviceCodeOption
	if opts.Claims != "" {
		dcOpts = append(dcOpts, public.WithClaims(opts.Claims))
	}
	dc, err := c.client.AcquireTokenByDeviceCode(ctx, scopes, dcOpts...)
	if err != nil {
		return DeviceCode{}, err
	}
	wait := func(ctx context.Context) (Result, error) {
		ar, err := dc.AuthenticationResult(ctx)
		if err != nil {
			return Result{}, err
		}
		return fromAuthResult(ar), nil
	}
	return NewDeviceCode(dc.Result.Message, dc.Result.UserCode, dc.Result.VerificationURL, dc.Result.ExpiresOn, wait), nil
}

func (c *msalClient) AcquireTokenInteractive(ctx context.Context, scopes []string, opts InteractiveOptions) (Result, error) {
	var iOpts []public.AcquireInteractiveOption
	if opts.RedirectURI != "" {
		iOpts = append(iOpts, public.WithRedirectURI(opts.RedirectURI))
	}
	if opts.LoginHint != "" {
		iOpts = append(iOpts, public.WithLoginHint(opts.LoginHint))
	}
	if opts.Claims != "" {
		iOpts = append(iOpts, public.WithClaims(opts.Claims))
	}
	if opts.OpenURL != nil {
		iOpts = append(iOpts, public.WithOpenURL(opts.OpenURL))
	}
	ar, err := c.client.AcquireTokenInteractive(ctx, scopes, iOpts...)
	if err != nil {
		return Result{}, err
	}
	return fromAuthResult(ar), nil
}

// fromAuthResult flattens an MSAL result, preferring id token claims over
// cached account fields.
func fromAuthResult(ar public.AuthResult) Result {
	tenant := ar.IDToken.TenantID
	if tenant == "" {
		tenant = ar.Account.Realm
	}
	username := ar.IDToken.PreferredUsername
	if username == "" {
		username = ar.IDToken.UPN
	}
	if username == "" {
		username = ar.Account.PreferredUsername
	}
	authority := "https://" + ar.Account.Environment
	if u, err := url.Parse(ar.IDToken.Issuer); err == nil && u.Host != "" {
		authority = u.Scheme + "://" + u.Host
	}
	return Result{
		AccessToken: ar.AccessToken,
		ExpiresOn:   ar.ExpiresOn,
		Account:     ar.Account,
		Authority:   authority,
		ClientID:    ar.IDToken.Audience,
		TenantID:    tenant,
		Username:    username,
	}
}
