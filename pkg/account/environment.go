package account

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultApplicationID is the well-known first-party public client. Tokens it
// obtains are stored under the family refresh token "1".
const DefaultApplicationID = "1950a258-227b-4e31-a9cf-717495945fc2"

// DefaultEnvironment is the environment used when none is named.
const DefaultEnvironment = "AzureCloud"

// EnvironmentType distinguishes shipped environments from user additions.
type EnvironmentType int

const (
	BuiltIn EnvironmentType = iota
	UserDefined
)

func (t EnvironmentType) String() string {
	if t == UserDefined {
		return "UserDefined"
	}
	return "BuiltIn"
}

// Environment describes an authority and the API it issues tokens for.
type Environment struct {
	Name                     string
	Type                     EnvironmentType
	ActiveDirectoryAuthority string
	ApplicationID            string
	APIEndpoint              string
}

// AuthorityFor joins the authority host with a tenant. An empty tenant maps to
// "organizations".
func (e Environment) AuthorityFor(tenant string) string {
	if tenant == "" {
		tenant = "organizations"
	}
	return strings.TrimRight(e.ActiveDirectoryAuthority, "/") + "/" + tenant
}

// ClientID returns the environment application id, falling back to
// DefaultApplicationID.
func (e Environment) ClientID() string {
	if e.ApplicationID == "" {
		return DefaultApplicationID
	}
	return e.ApplicationID
}

// DefaultScopes returns the ".default" scope of the API endpoint.
func (e Environment) DefaultScopes() []string {
	return []string{strings.TrimRight(e.APIEndpoint, "/") + "/.default"}
}

// BuiltInEnvironments returns the shipped environments.
func BuiltInEnvironments() []Environment {
	return []Environment{
		{
			Name:                     "AzureCloud",
			Type:                     BuiltIn,
			ActiveDirectoryAuthority: "https://login.microsoftonline.com/",
			ApplicationID:            DefaultApplicationID,
			APIEndpoint:              "https://graph.microsoft.com/",
		},
		{
			Name:                     "AzureChinaCloud",
			Type:                     BuiltIn,
			ActiveDirectoryAuthority: "https://login.chinacloudapi.cn/",
			ApplicationID:            DefaultApplicationID,
			APIEndpoint:              "https://microsoftgraph.chinacloudapi.cn/",
		},
		{
			Name:                     "AzureUSGovernment",
			Type:                     BuiltIn,
			ActiveDirectoryAuthority: "https://login.microsoftonline.us/",
			ApplicationID:            DefaultApplicationID,
			APIEndpoint:              "https://graph.microsoft.us/",
		},
	}
}

// EnvironmentTable is a registry of environments keyed by case-insensitive
// name. It is safe for concurrent use.
type EnvironmentTable struct {
	mu      sync.RWMutex
	entries map[string]Environment
}

// NewEnvironmentTable returns a table seeded with the built-in environments.
func NewEnvironmentTable() *EnvironmentTable {
	t := &EnvironmentTable{entries: make(map[string]Environment)}
	for _, env := range BuiltInEnvironments() {
		t.entries[strings.ToLower(env.Name)] = env
	}
	return t
}

// Get looks up an environment by name.
func (t *EnvironmentTable) Get(name string) (Environment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	env, ok := t.entries[strings.ToLower(name)]
	return env, ok
}

// List returns all environments sorted by name.
func (t *EnvironmentTable) List() []Environment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Environment, 0, len(t.entries))
	for _, env := range t.entries {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add registers or replaces a user-defined environment. Built-in entries
// cannot be replaced.
func (t *EnvironmentTable) Add(env Environment) error {
	if env.Name == "" {
		return fmt.Errorf("environment name is required")
	}
	if env.ActiveDirectoryAuthority == "" {
		return fmt.Errorf("environment %s: authority is required", env.Name)
	}
	env.Type = UserDefined

	t.mu.Lock()
	defer t.mu.Unlock()
	key := strings.ToLower(env.Name)
	if existing, ok := t.entries[key]; ok && existing.Type == BuiltIn {
		return fmt.Errorf("environment %s is built-in and cannot be modified", existing.Name)
	}
	t.entries[key] = env
	return nil
}

// Remove deletes a user-defined environment.
func (t *EnvironmentTable) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := strings.ToLower(name)
	existing, ok := t.entries[key]
	if !ok {
		return fmt.Errorf("environment %s not found", name)
	}
	if existing.Type == BuiltIn {
		return fmt.Errorf("environment %s is built-in and cannot be removed", existing.Name)
	}
	delete(t.entries, key)
	return nil
}
