package account

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the kind of principal an Account represents.
type Type int

const (
	// Unknown is the zero value and never selects a default flow.
	Unknown Type = iota
	// User is an interactive principal.
	User
	// PreIssuedToken wraps a token obtained outside the broker.
	PreIssuedToken
)

// String returns the canonical name of the account type.
func (t Type) String() string {
	switch t {
	case User:
		return "User"
	case PreIssuedToken:
		return "PreIssuedToken"
	default:
		return "Unknown"
	}
}

// ParseType converts a name into a Type. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "":
		return User, nil
	case "preissuedtoken", "accesstoken":
		return PreIssuedToken, nil
	case "unknown":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("unknown account type %q", s)
}

// Property keys understood by the broker.
const (
	PropertyUseAuthCode   = "use-auth-code"
	PropertyUseDeviceCode = "use-device-code"
	PropertyApplicationID = "application-id"
	PropertyHomeAccountID = "home-account-id"
)

// Account describes the principal that is authenticating.
type Account struct {
	Type       Type
	Tenant     string
	Username   string
	Properties map[string]string
}

// New creates an account with an empty property bag.
func New(t Type, tenant, username string) *Account {
	return &Account{
		Type:       t,
		Tenant:     tenant,
		Username:   username,
		Properties: make(map[string]string),
	}
}

// Property returns the value stored under key, or "" when absent.
func (a *Account) Property(key string) string {
	if a == nil || a.Properties == nil {
		return ""
	}
	return a.Properties[key]
}

// SetProperty stores value under key. An empty value removes the key.
func (a *Account) SetProperty(key, value string) {
	if a.Properties == nil {
		a.Properties = make(map[string]string)
	}
	if value == "" {
		delete(a.Properties, key)
		return
	}
	a.Properties[key] = value
}

// HasFlag reports whether key holds a truthy value. Any non-empty value that
// does not parse as a boolean counts as set.
func (a *Account) HasFlag(key string) bool {
	v := strings.TrimSpace(a.Property(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := &Account{
		Type:       a.Type,
		Tenant:     a.Tenant,
		Username:   a.Username,
		Properties: make(map[string]string, len(a.Properties)),
	}
	for k, v := range a.Properties {
		c.Properties[k] = v
	}
	return c
}

// HomeAccountID is shorthand for the home-account-id property.
func (a *Account) HomeAccountID() string {
	return a.Property(PropertyHomeAccountID)
}

// ApplicationID is shorthand for the application-id property.
func (a *Account) ApplicationID() string {
	return a.Property(PropertyApplicationID)
}
