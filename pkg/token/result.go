package token

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/systmms/tokenbroker/internal/errors"
)

// DefaultTokenType is the token type reported by the identity provider.
const DefaultTokenType = "Bearer"

// Result is the unified outcome of an authentication attempt.
type Result struct {
	AccessToken   string
	TokenType     string
	ExpiresOn     time.Time
	TenantID      string
	Username      string
	HomeAccountID string
	// RefreshToken is empty unless it was requested and could be mined from
	// the token cache.
	RefreshToken string
}

// Expired reports whether the access token has expired at now.
func (r Result) Expired(now time.Time) bool {
	return !r.ExpiresOn.IsZero() && !now.Before(r.ExpiresOn)
}

// Credential adapts the result to an azcore.TokenCredential that always
// returns this access token.
func (r Result) Credential() azcore.TokenCredential {
	return staticCredential{result: r}
}

type staticCredential struct {
	result Result
}

func (c staticCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return azcore.AccessToken{}, err
	}
	if c.result.Expired(time.Now()) {
		return azcore.AccessToken{}, errors.TokenExpired(nil, "access token for %s expired at %s",
			c.result.Username, c.result.ExpiresOn.Format(time.RFC3339))
	}
	return azcore.AccessToken{Token: c.result.AccessToken, ExpiresOn: c.result.ExpiresOn}, nil
}

// AccessToken is a raw token as returned by the token step of an
// authentication flow.
type AccessToken struct {
	Token     string
	Type      string
	ExpiresOn time.Time
}

// BulkRefreshToken is the outcome of a bulk enrollment exchange.
type BulkRefreshToken struct {
	Error            string    `json:"error,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	ExpiresOn        time.Time `json:"expires_on"`
}

// Succeeded reports whether the exchange produced a token.
func (b BulkRefreshToken) Succeeded() bool {
	return b.Error == "" && b.RefreshToken != ""
}
