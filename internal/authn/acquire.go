package authn

import (
	"context"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/token"
)

// acquire runs cred's identity step and then its token step, strictly in
// that order, and assembles the result. A refresh token is mined from the
// cache when requested; failing to find one leaves it empty.
func acquire(ctx context.Context, sess *session.Session, cred credential, p Parameters) (token.Result, error) {
	if err := ctx.Err(); err != nil {
		return token.Result{}, err
	}
	record, err := cred.authenticate(ctx)
	if err != nil {
		return token.Result{}, tberrors.IdentityProviderError(p.Kind.String()+" sign-in", err)
	}
	if record.ClientID == "" {
		record.ClientID = p.ClientID
	}

	if err := ctx.Err(); err != nil {
		return token.Result{}, err
	}
	at, err := cred.getToken(ctx, record)
	if err != nil {
		return token.Result{}, tberrors.IdentityProviderError("token acquisition", err)
	}
	if at.Type == "" {
		at.Type = token.DefaultTokenType
	}

	result := token.Result{
		AccessToken:   at.Token,
		TokenType:     at.Type,
		ExpiresOn:     at.ExpiresOn,
		TenantID:      record.TenantID,
		Username:      record.Username,
		HomeAccountID: record.HomeAccountID,
	}
	if p.IncludeRefreshToken {
		result.RefreshToken = mineRefreshToken(ctx, sess, p, record)
	}
	return result, nil
}

// mineRefreshToken loads the cache through a client bound to the record's
// client id and reads the refresh token stored for the record's account.
func mineRefreshToken(ctx context.Context, sess *session.Session, p Parameters, record token.Record) string {
	if p.Cache == nil {
		return ""
	}
	log := p.logger()

	cfg := identity.ClientConfig{ClientID: record.ClientID, Authority: p.Environment.AuthorityFor(record.TenantID)}
	p.Cache.RegisterCache(&cfg)
	client, err := sess.Factory.New(cfg)
	if err != nil {
		log.Debug("Refresh token unavailable: %v", err)
		return ""
	}
	if _, err := client.Accounts(ctx); err != nil {
		log.Debug("Refresh token unavailable: %v", err)
		return ""
	}

	rt, err := p.Cache.RefreshToken(ctx, record.ClientID, record.HomeAccountID)
	if err != nil {
		log.Debug("Refresh token unavailable: %v", err)
		return ""
	}
	return rt
}
