package authn

import (
	"context"
	"errors"
	"strings"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/internal/tokencache"
	"github.com/systmms/tokenbroker/pkg/token"
)

// refreshTokenAuthenticator redeems a refresh token supplied by the caller
// and seeds the token cache with the account it belongs to, so later silent
// calls find it.
type refreshTokenAuthenticator struct {
	sess *session.Session
}

func (a *refreshTokenAuthenticator) Kind() Kind { return KindRefreshToken }

func (a *refreshTokenAuthenticator) Authenticate(ctx context.Context, p Parameters) (*token.Result, error) {
	if p.Kind != KindRefreshToken || p.RefreshToken == nil {
		return nil, nil
	}
	cred := newRefreshCredential(a.sess, p)
	res, err := acquire(ctx, a.sess, cred, p)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type refreshCredential struct {
	sess   *session.Session
	params Parameters
	cfg    identity.ClientConfig

	exchanged identity.TokenResponse
}

func newRefreshCredential(sess *session.Session, p Parameters) *refreshCredential {
	c := &refreshCredential{sess: sess, params: p}
	c.cfg = identity.ClientConfig{ClientID: p.ClientID, Authority: p.Authority()}
	if p.Cache != nil {
		p.Cache.RegisterCache(&c.cfg)
	}
	p.logger().Debug("Redeeming refresh token at authority %s (tenant %q) for scopes %s",
		c.cfg.Authority, p.Account.Tenant, strings.Join(p.Scopes, " "))
	return c
}

func (c *refreshCredential) authenticate(ctx context.Context) (token.Record, error) {
	rt, err := c.params.RefreshToken.Token.String()
	if err != nil {
		return token.Record{}, err
	}
	if rt == "" {
		return token.Record{}, errors.New("refresh token is empty")
	}

	resp, err := c.sess.Endpoint.ExchangeRefreshToken(ctx, identity.RefreshRequest{
		Authority:    c.cfg.Authority,
		ClientID:     c.cfg.ClientID,
		RefreshToken: rt,
		Scopes:       c.params.Scopes,
		Claims:       identity.MFAClaims,
	})
	if err != nil {
		return token.Record{}, err
	}
	c.exchanged = resp

	record := c.recordFrom(resp)
	if resp.RefreshToken == "" {
		resp.RefreshToken = rt
	}
	if err := c.seedCache(ctx, record, resp); err != nil {
		c.params.logger().Warn("Could not store the refreshed account in the token cache: %v", err)
	}
	return record, nil
}

// recordFrom identifies the principal from the id token, falling back to
// client_info and then to what the caller already knew.
func (c *refreshCredential) recordFrom(resp identity.TokenResponse) token.Record {
	acct := c.params.Account
	username := acct.Username
	tenant := acct.Tenant
	home := acct.HomeAccountID()

	if resp.IDToken != "" {
		if claims, err := identity.ParseIDToken(resp.IDToken); err == nil {
			if claims.PreferredUsername != "" {
				username = claims.PreferredUsername
			}
			if claims.TenantID != "" {
				tenant = claims.TenantID
			}
			if home == "" && claims.ObjectID != "" && claims.TenantID != "" {
				home = claims.ObjectID + "." + claims.TenantID
			}
		} else {
			c.params.logger().Debug("Ignoring unreadable id token: %v", err)
		}
	}
	if resp.ClientInfo != "" {
		if info, err := identity.ParseClientInfo(resp.ClientInfo); err == nil && info.HomeAccountID() != "" {
			home = info.HomeAccountID()
			if tenant == "" {
				tenant = info.UTID
			}
		}
	}

	return token.NewRecord(identity.AuthorityHost(c.cfg.Authority), c.cfg.ClientID, home, tenant, username)
}

func (c *refreshCredential) seedCache(ctx context.Context, record token.Record, resp identity.TokenResponse) error {
	if c.params.Cache == nil || record.HomeAccountID == "" {
		return nil
	}
	env := strings.TrimPrefix(strings.TrimPrefix(record.Authority, "https://"), "http://")
	localID := record.HomeAccountID
	if i := strings.IndexByte(localID, '.'); i > 0 {
		localID = localID[:i]
	}

	return c.params.Cache.Update(ctx, func(doc tokencache.Document) error {
		doc.PutAccount(tokencache.AccountEntry{
			HomeAccountID:  record.HomeAccountID,
			Environment:    env,
			Realm:          record.TenantID,
			LocalAccountID: localID,
			Username:       record.Username,
			ClientInfo:     resp.ClientInfo,
		})
		doc.PutRefreshToken(tokencache.RefreshTokenEntry{
			HomeAccountID: record.HomeAccountID,
			Environment:   env,
			ClientID:      record.ClientID,
			FamilyID:      resp.FamilyID,
			Secret:        resp.RefreshToken,
		})
		if resp.IDToken != "" {
			doc.PutIDToken(tokencache.IDTokenEntry{
				HomeAccountID: record.HomeAccountID,
				Environment:   env,
				Realm:         record.TenantID,
				ClientID:      record.ClientID,
				Secret:        resp.IDToken,
			})
		}
		return nil
	})
}

// getToken returns the access token issued by the exchange.
func (c *refreshCredential) getToken(ctx context.Context, _ token.Record) (token.AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return token.AccessToken{}, err
	}
	if c.exchanged.AccessToken == "" {
		return token.AccessToken{}, errors.New("refresh token has not been redeemed")
	}
	return token.AccessToken{
		Token:     c.exchanged.AccessToken,
		Type:      c.exchanged.TokenType,
		ExpiresOn: c.exchanged.ExpiresOn,
	}, nil
}
