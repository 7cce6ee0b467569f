package authn

import (
	"context"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/token"
)

// silentAuthenticator redeems what the token cache already holds for a
// known account.
type silentAuthenticator struct {
	sess *session.Session
}

func (a *silentAuthenticator) Kind() Kind { return KindSilent }

func (a *silentAuthenticator) Authenticate(ctx context.Context, p Parameters) (*token.Result, error) {
	if p.Kind != KindSilent {
		return nil, nil
	}
	client, err := newClient(a.sess, p, p.ClientID, p.Authority())
	if err != nil {
		return nil, err
	}
	res, err := acquire(ctx, a.sess, &silentCredential{client: client, params: p}, p)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type silentCredential struct {
	client identity.Client
	params Parameters
}

// authenticate builds the record account discovery would have returned from
// the account fields alone. Whether the cache really holds the account is
// only learned when the token is requested.
func (c *silentCredential) authenticate(_ context.Context) (token.Record, error) {
	acct := c.params.Account
	record := token.NewRecord(
		identity.AuthorityHost(c.params.Environment.ActiveDirectoryAuthority),
		c.params.ClientID,
		acct.HomeAccountID(),
		acct.Tenant,
		acct.Username,
	)
	data, err := token.EncodeRecord(record)
	if err != nil {
		return token.Record{}, err
	}
	return token.DecodeRecord(data)
}

func (c *silentCredential) getToken(ctx context.Context, record token.Record) (token.AccessToken, error) {
	return silentToken(ctx, c.client, record, c.params.Scopes, identity.MFAClaims)
}
