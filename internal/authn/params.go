// Package authn selects and runs authentication flows.
//
// Resolve turns a Request into Parameters naming exactly one flow. The
// Service dispatches Parameters to the matching Authenticator, runs it as
// background work behind an execution bridge so prompts and output reach
// the host from its own goroutine, and unifies the outcome into a
// token.Result.
package authn

import (
	"context"

	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/secure"
	"github.com/systmms/tokenbroker/internal/tokencache"
	"github.com/systmms/tokenbroker/pkg/account"
)

// Kind identifies an authentication flow.
type Kind int

// Authentication flows
const (
	KindInteractive Kind = iota + 1
	KindDeviceCode
	KindUsernamePassword
	KindRefreshToken
	KindSilent
)

// Kinds lists every flow.
var Kinds = []Kind{KindInteractive, KindDeviceCode, KindUsernamePassword, KindRefreshToken, KindSilent}

func (k Kind) String() string {
	switch k {
	case KindInteractive:
		return "interactive"
	case KindDeviceCode:
		return "device-code"
	case KindUsernamePassword:
		return "username-password"
	case KindRefreshToken:
		return "refresh-token"
	case KindSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// Request asks for a token for an account in an environment.
type Request struct {
	Account     *account.Account
	Environment account.Environment
	// Scopes default to the environment's API scope.
	Scopes []string
	// Password selects the username/password flow when the account has a
	// username.
	Password *secure.SecureBuffer
	// RefreshToken selects the refresh token flow.
	RefreshToken *secure.SecureBuffer
	// IncludeRefreshToken asks for the cached refresh token in the result.
	IncludeRefreshToken bool
}

// OutputFunc shows device code instructions to the user.
type OutputFunc func(ctx context.Context, message string) error

// DeviceCodeParams are the device code flow inputs.
type DeviceCodeParams struct {
	Output OutputFunc
}

// UsernamePasswordParams are the username/password flow inputs.
type UsernamePasswordParams struct {
	Password *secure.SecureBuffer
}

// RefreshTokenParams are the refresh token flow inputs.
type RefreshTokenParams struct {
	Token *secure.SecureBuffer
}

// Parameters are the resolved inputs of one authentication attempt. Exactly
// one of the variant fields is set for the flows that take extra input.
type Parameters struct {
	Kind        Kind
	Account     *account.Account
	Environment account.Environment
	Scopes      []string
	ClientID    string
	// Cache is nil when no token cache provider is registered.
	Cache               tokencache.Provider
	IncludeRefreshToken bool
	Logger              *logging.Logger

	DeviceCode       *DeviceCodeParams
	UsernamePassword *UsernamePasswordParams
	RefreshToken     *RefreshTokenParams
}

// Authority is the environment authority for the account's tenant.
func (p Parameters) Authority() string {
	return p.Environment.AuthorityFor(p.Account.Tenant)
}

func (p Parameters) logger() *logging.Logger {
	if p.Logger == nil {
		return logging.Nop()
	}
	return p.Logger
}
