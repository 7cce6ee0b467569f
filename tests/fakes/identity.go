package fakes

import (
	"context"
	"sync"

	"github.com/systmms/tokenbroker/internal/identity"
)

// IdentityCall records one call made to a FakeIdentityClient
type IdentityCall struct {
	Method      string
	ClientID    string
	Authority   string
	Scopes      []string
	Claims      string
	Account     identity.Account
	Username    string
	Password    string
	RedirectURI string
	LoginHint   string
}

// FakeIdentityClient is a test double for identity.Client. Each flow returns
// its configured result unless its hook is set.
type FakeIdentityClient struct {
	mu    sync.Mutex
	cfg   identity.ClientConfig
	calls []IdentityCall

	AccountList []identity.Account
	AccountsErr error
	RemoveErr   error
	Removed     []identity.Account

	SilentResult identity.Result
	SilentErr    error

	PasswordResult identity.Result
	PasswordErr    error

	DeviceCodeMessage string
	DeviceCodeResult  identity.Result
	DeviceCodeErr     error
	DeviceCodeWaitErr error
	// DeviceCodeWait replaces the default wait when set.
	DeviceCodeWait func(ctx context.Context) (identity.Result, error)

	InteractiveResult identity.Result
	InteractiveErr    error
	// OnInteractive replaces the default interactive behavior when set.
	OnInteractive func(ctx context.Context, opts identity.InteractiveOptions) (identity.Result, error)
}

// Calls returns a copy of the recorded calls
func (f *FakeIdentityClient) Calls() []IdentityCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]IdentityCall(nil), f.calls...)
}

// CallsTo returns the recorded calls to method
func (f *FakeIdentityClient) CallsTo(method string) []IdentityCall {
	var out []IdentityCall
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeIdentityClient) record(c IdentityCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ClientID = f.cfg.ClientID
	c.Authority = f.cfg.Authority
	c.Scopes = append([]string(nil), c.Scopes...)
	f.calls = append(f.calls, c)
}

func (f *FakeIdentityClient) Accounts(ctx context.Context) ([]identity.Account, error) {
	f.record(IdentityCall{Method: "Accounts"})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.AccountsErr != nil {
		return nil, f.AccountsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]identity.Account(nil), f.AccountList...), nil
}

func (f *FakeIdentityClient) RemoveAccount(ctx context.Context, account identity.Account) error {
	f.record(IdentityCall{Method: "RemoveAccount", Account: account})
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed = append(f.Removed, account)
	kept := f.AccountList[:0]
	for _, a := range f.AccountList {
		if a.HomeAccountID != account.HomeAccountID {
			kept = append(kept, a)
		}
	}
	f.AccountList = kept
	return nil
}

func (f *FakeIdentityClient) AcquireTokenSilent(ctx context.Context, scopes []string, opts identity.SilentOptions) (identity.Result, error) {
	f.record(IdentityCall{Method: "AcquireTokenSilent", Scopes: scopes, Claims: opts.Claims, Account: opts.Account})
	if err := ctx.Err(); err != nil {
		return identity.Result{}, err
	}
	return f.SilentResult, f.SilentErr
}

func (f *FakeIdentityClient) AcquireTokenByUsernamePassword(ctx context.Context, scopes []string, username, password string) (identity.Result, error) {
	f.record(IdentityCall{Method: "AcquireTokenByUsernamePassword", Scopes: scopes, Username: username, Password: password})
	if err := ctx.Err(); err != nil {
		return identity.Result{}, err
	}
	return f.PasswordResult, f.PasswordErr
}

func (f *FakeIdentityClient) AcquireTokenByDeviceCode(ctx context.Context, scopes []string, opts identity.DeviceCodeOptions) (identity.DeviceCode, error) {
	f.record(IdentityCall{Method: "AcquireTokenByDeviceCode", Scopes: scopes, Claims: opts.Claims})
	if err := ctx.Err(); err != nil {
		return identity.DeviceCode{}, err
	}
	if f.DeviceCodeErr != nil {
		return identity.DeviceCode{}, f.DeviceCodeErr
	}
	wait := f.DeviceCodeWait
	if wait == nil {
		wait = func(ctx context.Context) (identity.Result, error) {
			if err := ctx.Err(); err != nil {
				return identity.Result{}, err
			}
			return f.DeviceCodeResult, f.DeviceCodeWaitErr
		}
	}
	return identity.NewDeviceCode(f.DeviceCodeMessage, "CODE", "https://microsoft.com/devicelogin", f.DeviceCodeResult.ExpiresOn, wait), nil
}

func (f *FakeIdentityClient) AcquireTokenInteractive(ctx context.Context, scopes []string, opts identity.InteractiveOptions) (identity.Result, error) {
	f.record(IdentityCall{Method: "AcquireTokenInteractive", Scopes: scopes, Claims: opts.Claims, RedirectURI: opts.RedirectURI, LoginHint: opts.LoginHint})
	if err := ctx.Err(); err != nil {
		return identity.Result{}, err
	}
	if f.OnInteractive != nil {
		return f.OnInteractive(ctx, opts)
	}
	return f.InteractiveResult, f.InteractiveErr
}

// FakeIdentityFactory hands out a single FakeIdentityClient and records the
// configurations it was asked to build.
type FakeIdentityFactory struct {
	mu      sync.Mutex
	configs []identity.ClientConfig

	Client *FakeIdentityClient
	NewErr error
}

// New records cfg and returns the shared client
func (f *FakeIdentityFactory) New(cfg identity.ClientConfig) (identity.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	if f.Client == nil {
		f.Client = &FakeIdentityClient{}
	}
	f.Client.mu.Lock()
	f.Client.cfg = cfg
	f.Client.mu.Unlock()
	return f.Client, nil
}

// Configs returns the configurations passed to New
func (f *FakeIdentityFactory) Configs() []identity.ClientConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]identity.ClientConfig(nil), f.configs...)
}

var (
	_ identity.Client  = (*FakeIdentityClient)(nil)
	_ identity.Factory = (*FakeIdentityFactory)(nil)
)
