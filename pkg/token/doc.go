// Package token holds the values produced by the broker: the identity record
// of an authenticated principal, the unified authentication result and the
// bulk refresh token used for device enrollment.
//
// Result is the only value that crosses the broker boundary. It is an
// immutable value: copies are independent and nothing in the broker mutates a
// Result after it is built. Callers that need to hand the token to an Azure SDK
// client can adapt it with Result.Credential.
package token
