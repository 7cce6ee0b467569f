package authn

import (
	"context"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/account"
)

// Resolve picks the flow for req. Explicit hints win over supplied
// credentials, which win over cached identity:
//
//  1. use-auth-code property: interactive
//  2. use-device-code property: device code
//  3. username and password: username/password
//  4. refresh token: refresh token
//  5. home-account-id property: silent
//  6. User account: interactive
//
// Anything else cannot be authenticated.
func Resolve(sess *session.Session, req Request) (Parameters, error) {
	if req.Account == nil {
		return Parameters{}, tberrors.Authentication(nil, "unable to resolve authentication parameters: no account")
	}

	acct := req.Account.Clone()
	scopes := append([]string(nil), req.Scopes...)
	if len(scopes) == 0 {
		scopes = req.Environment.DefaultScopes()
	}
	clientID := acct.ApplicationID()
	if clientID == "" {
		clientID = req.Environment.ClientID()
	}
	cache, _ := sess.TokenCache()

	p := Parameters{
		Account:             acct,
		Environment:         req.Environment,
		Scopes:              scopes,
		ClientID:            clientID,
		Cache:               cache,
		IncludeRefreshToken: req.IncludeRefreshToken,
		Logger:              sess.Logger,
	}

	switch {
	case acct.HasFlag(account.PropertyUseAuthCode):
		p.Kind = KindInteractive
	case acct.HasFlag(account.PropertyUseDeviceCode):
		p.Kind = KindDeviceCode
		p.DeviceCode = &DeviceCodeParams{Output: hostOutput(sess)}
	case acct.Username != "" && !req.Password.IsEmpty():
		p.Kind = KindUsernamePassword
		p.UsernamePassword = &UsernamePasswordParams{Password: req.Password}
	case !req.RefreshToken.IsEmpty():
		p.Kind = KindRefreshToken
		p.RefreshToken = &RefreshTokenParams{Token: req.RefreshToken}
	case acct.HomeAccountID() != "":
		p.Kind = KindSilent
	case acct.Type == account.User:
		p.Kind = KindInteractive
	default:
		return Parameters{}, tberrors.Authentication(nil, "unable to resolve authentication parameters for %s account", acct.Type)
	}
	return p, nil
}

// hostOutput writes to whichever host is active when the flow reports,
// which is the bridge while the flow runs in the background.
func hostOutput(sess *session.Session) OutputFunc {
	return func(ctx context.Context, message string) error {
		h := sess.Host()
		if h == nil {
			sess.Logger.Warn("%s", message)
			return nil
		}
		return h.WriteWarning(ctx, message)
	}
}
