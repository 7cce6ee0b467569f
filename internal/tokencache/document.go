package tokencache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/systmms/tokenbroker/pkg/account"
)

// Section names in the MSAL cache blob.
const (
	SectionAccessToken  = "AccessToken"
	SectionRefreshToken = "RefreshToken"
	SectionIDToken      = "IdToken"
	SectionAccount      = "Account"
	SectionAppMetadata  = "AppMetadata"
)

// RefreshTokenEnvironment is the environment segment of refresh token keys.
const RefreshTokenEnvironment = "login.windows.net"

// familyID marks refresh tokens shared by the first-party application family.
const familyID = "1"

// RefreshTokenKey returns the cache key of the refresh token issued to
// clientID for homeAccountID. The default application stores its token under
// the family id. Keys are lowercase, as the provider library writes them.
func RefreshTokenKey(clientID, homeAccountID string) string {
	suffix := clientID
	if clientID == account.DefaultApplicationID {
		suffix = familyID
	}
	return strings.ToLower(fmt.Sprintf("%s-%s-refreshtoken-%s--", homeAccountID, RefreshTokenEnvironment, suffix))
}

type entry = map[string]interface{}

// Document is a parsed MSAL cache blob. Unknown sections and fields are
// preserved on Marshal.
type Document struct {
	sections map[string]map[string]entry
}

// ParseDocument parses data. Empty data yields an empty document.
func ParseDocument(data []byte) (Document, error) {
	doc := Document{sections: map[string]map[string]entry{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc.sections); err != nil {
		return Document{}, fmt.Errorf("parse token cache: %w", err)
	}
	if doc.sections == nil {
		doc.sections = map[string]map[string]entry{}
	}
	return doc, nil
}

// Marshal serializes the document.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d.sections)
}

// Len returns the number of entries in section.
func (d Document) Len(section string) int {
	return len(d.sections[section])
}

func (d Document) section(name string) map[string]entry {
	s, ok := d.sections[name]
	if !ok {
		s = map[string]entry{}
		d.sections[name] = s
	}
	return s
}

// RefreshTokenSecret finds the refresh token for clientID and homeAccountID.
// The well-known key is tried first; otherwise entries are matched by field,
// which covers keys written in the provider library's own format.
func (d Document) RefreshTokenSecret(clientID, homeAccountID string) (string, bool) {
	tokens := d.sections[SectionRefreshToken]
	if e, ok := tokens[RefreshTokenKey(clientID, homeAccountID)]; ok {
		if secret := field(e, "secret"); secret != "" {
			return secret, true
		}
	}
	for _, e := range tokens {
		if !strings.EqualFold(field(e, "home_account_id"), homeAccountID) {
			continue
		}
		matched := field(e, "client_id") == clientID
		if clientID == account.DefaultApplicationID && field(e, "family_id") == familyID {
			matched = true
		}
		if matched {
			if secret := field(e, "secret"); secret != "" {
				return secret, true
			}
		}
	}
	return "", false
}

// RefreshTokenEntry is a cached refresh token.
type RefreshTokenEntry struct {
	HomeAccountID string
	Environment   string
	ClientID      string
	FamilyID      string
	Secret        string
}

// PutRefreshToken stores rt under its well-known key.
func (d Document) PutRefreshToken(rt RefreshTokenEntry) {
	env := rt.Environment
	if env == "" {
		env = RefreshTokenEnvironment
	}
	if rt.ClientID == account.DefaultApplicationID && rt.FamilyID == "" {
		rt.FamilyID = familyID
	}
	e := entry{
		"home_account_id": rt.HomeAccountID,
		"environment":     env,
		"credential_type": "RefreshToken",
		"client_id":       rt.ClientID,
		"secret":          rt.Secret,
	}
	if rt.FamilyID != "" {
		e["family_id"] = rt.FamilyID
	}
	d.section(SectionRefreshToken)[RefreshTokenKey(rt.ClientID, rt.HomeAccountID)] = e
}

// AccountEntry is a cached account.
type AccountEntry struct {
	HomeAccountID  string
	Environment    string
	Realm          string
	LocalAccountID string
	Username       string
	ClientInfo     string
}

// PutAccount stores a.
func (d Document) PutAccount(a AccountEntry) {
	key := strings.ToLower(strings.Join([]string{a.HomeAccountID, a.Environment, a.Realm}, "-"))
	e := entry{
		"home_account_id":  a.HomeAccountID,
		"environment":      a.Environment,
		"realm":            a.Realm,
		"local_account_id": a.LocalAccountID,
		"authority_type":   "MSSTS",
		"username":         a.Username,
	}
	if a.ClientInfo != "" {
		e["client_info"] = a.ClientInfo
	}
	d.section(SectionAccount)[key] = e
}

// IDTokenEntry is a cached id token.
type IDTokenEntry struct {
	HomeAccountID string
	Environment   string
	Realm         string
	ClientID      string
	Secret        string
}

// PutIDToken stores t.
func (d Document) PutIDToken(t IDTokenEntry) {
	key := strings.ToLower(strings.Join([]string{t.HomeAccountID, t.Environment, "idtoken", t.ClientID, t.Realm, ""}, "-"))
	d.section(SectionIDToken)[key] = entry{
		"home_account_id": t.HomeAccountID,
		"environment":     t.Environment,
		"realm":           t.Realm,
		"credential_type": "IdToken",
		"client_id":       t.ClientID,
		"secret":          t.Secret,
	}
}

// Accounts returns the usernames of cached accounts keyed by home account id.
func (d Document) Accounts() map[string]string {
	out := make(map[string]string, len(d.sections[SectionAccount]))
	for _, e := range d.sections[SectionAccount] {
		out[field(e, "home_account_id")] = field(e, "username")
	}
	return out
}

func field(e entry, name string) string {
	switch v := e[name].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
