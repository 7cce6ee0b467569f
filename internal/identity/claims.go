package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IDClaims are the identity fields the broker reads from an id token.
type IDClaims struct {
	ObjectID          string
	TenantID          string
	PreferredUsername string
	Audience          string
	Issuer            string
}

// ParseIDToken decodes id token claims without verifying the signature. The
// token arrived over TLS straight from the token endpoint.
func ParseIDToken(raw string) (IDClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return IDClaims{}, fmt.Errorf("parse id token: %w", err)
	}

	out := IDClaims{
		ObjectID:          stringClaim(claims, "oid"),
		TenantID:          stringClaim(claims, "tid"),
		PreferredUsername: stringClaim(claims, "preferred_username"),
		Issuer:            stringClaim(claims, "iss"),
	}
	if out.PreferredUsername == "" {
		out.PreferredUsername = stringClaim(claims, "upn")
	}
	if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		out.Audience = aud[0]
	}
	return out, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

// ClientInfo is the decoded client_info response parameter.
type ClientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`
}

// HomeAccountID returns "uid.utid".
func (c ClientInfo) HomeAccountID() string {
	if c.UID == "" || c.UTID == "" {
		return ""
	}
	return c.UID + "." + c.UTID
}

// ParseClientInfo decodes the base64url client_info parameter.
func ParseClientInfo(raw string) (ClientInfo, error) {
	raw = strings.TrimRight(raw, "=")
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// some endpoints pad or use the standard alphabet
		data, err = base64.RawStdEncoding.DecodeString(raw)
		if err != nil {
			return ClientInfo{}, fmt.Errorf("decode client_info: %w", err)
		}
	}
	var ci ClientInfo
	if err := json.Unmarshal(data, &ci); err != nil {
		return ClientInfo{}, fmt.Errorf("decode client_info: %w", err)
	}
	return ci, nil
}
