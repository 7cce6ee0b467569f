package authn

import (
	"context"
	"errors"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/token"
)

// usernamePasswordAuthenticator exchanges a username and password for a
// token. The flow cannot answer a multi-factor challenge, so no step-up
// claim is sent.
type usernamePasswordAuthenticator struct {
	sess *session.Session
}

func (a *usernamePasswordAuthenticator) Kind() Kind { return KindUsernamePassword }

func (a *usernamePasswordAuthenticator) Authenticate(ctx context.Context, p Parameters) (*token.Result, error) {
	if p.Kind != KindUsernamePassword || p.UsernamePassword == nil {
		return nil, nil
	}
	client, err := newClient(a.sess, p, p.ClientID, p.Authority())
	if err != nil {
		return nil, err
	}
	res, err := acquire(ctx, a.sess, &passwordCredential{client: client, params: p}, p)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type passwordCredential struct {
	client identity.Client
	params Parameters
}

func (c *passwordCredential) authenticate(ctx context.Context) (token.Record, error) {
	password, err := c.params.UsernamePassword.Password.String()
	if err != nil {
		return token.Record{}, err
	}
	if password == "" {
		return token.Record{}, errors.New("password is empty")
	}
	res, err := c.client.AcquireTokenByUsernamePassword(ctx, c.params.Scopes, c.params.Account.Username, password)
	if err != nil {
		return token.Record{}, err
	}
	return recordOf(res, c.params.ClientID), nil
}

func (c *passwordCredential) getToken(ctx context.Context, record token.Record) (token.AccessToken, error) {
	return silentToken(ctx, c.client, record, c.params.Scopes, "")
}
