// Package identity is the boundary to the identity provider.
//
// Client is a narrow view of the MSAL public client covering the flows the
// broker uses. MSALFactory builds real clients; tests substitute their own
// Factory. EndpointClient talks to token endpoints MSAL does not expose: the
// refresh token grant and the bulk enrollment token flow.
package identity
