package authn

import (
	"context"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/token"
)

// credential is the two-step shape shared by every flow: establish who the
// principal is, then obtain a token for that principal.
type credential interface {
	authenticate(ctx context.Context) (token.Record, error)
	getToken(ctx context.Context, record token.Record) (token.AccessToken, error)
}

// Authenticator runs one flow. Authenticate returns a nil result and no
// error when p names a different flow.
type Authenticator interface {
	Kind() Kind
	Authenticate(ctx context.Context, p Parameters) (*token.Result, error)
}

// newClient builds an identity client for clientID at the parameters'
// authority. The cache is registered before the client is constructed.
func newClient(sess *session.Session, p Parameters, clientID, authority string) (identity.Client, error) {
	cfg := identity.ClientConfig{ClientID: clientID, Authority: authority}
	if p.Cache != nil {
		p.Cache.RegisterCache(&cfg)
	}
	return sess.Factory.New(cfg)
}

// silentToken redeems cached credentials for the record's account.
func silentToken(ctx context.Context, client identity.Client, record token.Record, scopes []string, claims string) (token.AccessToken, error) {
	res, err := client.AcquireTokenSilent(ctx, scopes, identity.SilentOptions{
		Account: identity.AccountFromRecord(record),
		Claims:  claims,
	})
	if err != nil {
		return token.AccessToken{}, err
	}
	return res.AccessTokenValue(), nil
}

// recordOf returns the record of res, filling the client id the client was
// built with when the provider did not report one.
func recordOf(res identity.Result, clientID string) token.Record {
	if res.ClientID == "" {
		res.ClientID = clientID
	}
	return res.Record()
}
