// Package account describes who is authenticating and against which authority.
//
// An Account carries the principal's type, tenant and username together with a
// free-form property bag. The property bag holds the flow hints that decide
// which authentication strategy runs:
//
//   - use-auth-code: force the interactive browser flow
//   - use-device-code: force the device code flow
//   - application-id: client id the cached tokens were issued to
//   - home-account-id: stable identifier used for silent acquisition
//
// An Environment names an authority, the application id used against it and
// the API endpoint that issued tokens are meant for. Built-in environments are
// immutable; user-defined environments may be added, replaced and removed
// through an EnvironmentTable.
//
// # Example
//
//	acct := account.New(account.User, "contoso.onmicrosoft.com", "alice@contoso.com")
//	acct.SetProperty(account.PropertyUseDeviceCode, "true")
//
//	table := account.NewEnvironmentTable()
//	env, ok := table.Get("AzureCloud")
package account
