// Package fakes provides test doubles for tokenbroker collaborators.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior: the identity client and factory, the host, and the OS
// keychain.
//
// Usage:
//
//	client := &fakes.FakeIdentityClient{
//	    SilentResult: identity.Result{AccessToken: "at"},
//	}
//	factory := &fakes.FakeIdentityFactory{Client: client}
//	sess.Factory = factory
//	// Authenticate, then inspect client.Calls()...
package fakes
