package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/secure"
	"github.com/systmms/tokenbroker/pkg/account"
	"github.com/systmms/tokenbroker/pkg/token"
)

// DefaultBulkValidity is how long a bulk refresh token stays valid when the
// request does not say.
const DefaultBulkValidity = 30 * 24 * time.Hour

// BulkRequest asks for a bulk enrollment refresh token.
type BulkRequest struct {
	Account      *account.Account
	Environment  account.Environment
	Password     *secure.SecureBuffer
	RefreshToken *secure.SecureBuffer
	// PackageID defaults to a random id.
	PackageID string
	// Name defaults to "package_<PackageID>".
	Name      string
	ExpiresOn time.Time
}

// BulkRefreshToken signs in to the device registration service with the
// enrollment application and runs the bulk token flow.
func (s *Service) BulkRefreshToken(ctx context.Context, req BulkRequest) (token.BulkRefreshToken, error) {
	if req.Account == nil {
		return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token requires an account")
	}
	acct := req.Account.Clone()
	acct.SetProperty(account.PropertyApplicationID, identity.BulkTokenClientID)

	res, err := s.Authenticate(ctx, Request{
		Account:      acct,
		Environment:  req.Environment,
		Scopes:       []string{identity.BulkTokenScope},
		Password:     req.Password,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return token.BulkRefreshToken{}, err
	}

	pid := req.PackageID
	if pid == "" {
		pid = uuid.NewString()
	}
	name := req.Name
	if name == "" {
		name = "package_" + pid
	}
	expires := req.ExpiresOn
	if expires.IsZero() {
		expires = time.Now().Add(DefaultBulkValidity)
	}

	out, err := s.sess.Endpoint.BulkToken(ctx, identity.BulkRequest{
		AuthorityHost: identity.AuthorityHost(req.Environment.ActiveDirectoryAuthority),
		AccessToken:   res.AccessToken,
		PackageID:     pid,
		Name:          name,
		ExpiresOn:     expires,
	})
	if err != nil {
		return token.BulkRefreshToken{}, err
	}
	if out.Error != "" {
		return out, tberrors.IdentityProviderError("bulk token flow",
			fmt.Errorf("%s: %s", out.Error, out.ErrorDescription))
	}
	return out, nil
}
