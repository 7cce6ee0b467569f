package authn

import (
	"context"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/token"
)

// deviceCodeAuthenticator signs the user in on another device.
type deviceCodeAuthenticator struct {
	sess *session.Session
}

func (a *deviceCodeAuthenticator) Kind() Kind { return KindDeviceCode }

func (a *deviceCodeAuthenticator) Authenticate(ctx context.Context, p Parameters) (*token.Result, error) {
	if p.Kind != KindDeviceCode || p.DeviceCode == nil {
		return nil, nil
	}
	client, err := newClient(a.sess, p, p.ClientID, p.Authority())
	if err != nil {
		return nil, err
	}
	res, err := acquire(ctx, a.sess, &deviceCodeCredential{client: client, params: p}, p)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type deviceCodeCredential struct {
	client identity.Client
	params Parameters
}

func (c *deviceCodeCredential) authenticate(ctx context.Context) (token.Record, error) {
	dc, err := c.client.AcquireTokenByDeviceCode(ctx, c.params.Scopes, identity.DeviceCodeOptions{
		Claims: identity.MFAClaims,
	})
	if err != nil {
		return token.Record{}, err
	}
	if output := c.params.DeviceCode.Output; output != nil {
		if err := output(ctx, dc.Message); err != nil {
			return token.Record{}, err
		}
	}
	res, err := dc.Wait(ctx)
	if err != nil {
		return token.Record{}, err
	}
	return recordOf(res, c.params.ClientID), nil
}

func (c *deviceCodeCredential) getToken(ctx context.Context, record token.Record) (token.AccessToken, error) {
	return silentToken(ctx, c.client, record, c.params.Scopes, identity.MFAClaims)
}
