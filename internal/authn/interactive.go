package authn

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/browser"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/token"
)

// Loopback redirect port range, inclusive.
const (
	firstLoopbackPort = 8401
	lastLoopbackPort  = 8999
)

type listenFunc func(network, address string) (net.Listener, error)

// findLoopbackPort returns the first port in range that can be bound. The
// probe listener is closed before returning so the identity library can bind
// the port itself.
func findLoopbackPort(listen listenFunc) (int, error) {
	for port := firstLoopbackPort; port <= lastLoopbackPort; port++ {
		l, err := listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port, nil
	}
	return 0, tberrors.Network(nil, "no free loopback port between %d and %d for the sign-in redirect",
		firstLoopbackPort, lastLoopbackPort).
		WithSuggestion("Free a port in that range or use --device-code")
}

// interactiveAuthenticator signs the user in through the system browser.
type interactiveAuthenticator struct {
	sess        *session.Session
	listen      listenFunc
	openBrowser func(url string) error
}

func newInteractiveAuthenticator(sess *session.Session) *interactiveAuthenticator {
	return &interactiveAuthenticator{
		sess:        sess,
		listen:      net.Listen,
		openBrowser: browser.OpenURL,
	}
}

func (a *interactiveAuthenticator) Kind() Kind { return KindInteractive }

func (a *interactiveAuthenticator) Authenticate(ctx context.Context, p Parameters) (*token.Result, error) {
	if p.Kind != KindInteractive {
		return nil, nil
	}
	port, err := findLoopbackPort(a.listen)
	if err != nil {
		return nil, err
	}
	client, err := newClient(a.sess, p, p.ClientID, p.Authority())
	if err != nil {
		return nil, err
	}
	cred := &interactiveCredential{
		client:      client,
		params:      p,
		redirectURI: fmt.Sprintf("http://localhost:%d", port),
		open:        a.announce,
	}
	res, err := acquire(ctx, a.sess, cred, p)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// announce tells the user where to sign in before launching the browser, so
// the URL is still usable when no browser can be started.
func (a *interactiveAuthenticator) announce(ctx context.Context, url string) error {
	if h := a.sess.Host(); h != nil {
		_ = h.WriteWarning(ctx, fmt.Sprintf("Opening a browser to sign in. If it does not open, visit:\n%s", url))
	}
	if err := a.openBrowser(url); err != nil {
		a.sess.Logger.Debug("Could not launch browser: %v", err)
	}
	return nil
}

type interactiveCredential struct {
	client      identity.Client
	params      Parameters
	redirectURI string
	open        func(ctx context.Context, url string) error
}

func (c *interactiveCredential) authenticate(ctx context.Context) (token.Record, error) {
	c.params.logger().Debug("Waiting for browser sign-in on %s", c.redirectURI)
	res, err := c.client.AcquireTokenInteractive(ctx, c.params.Scopes, identity.InteractiveOptions{
		RedirectURI: c.redirectURI,
		LoginHint:   c.params.Account.Username,
		Claims:      identity.MFAClaims,
		OpenURL: func(url string) error {
			return c.open(ctx, url)
		},
	})
	if err != nil {
		return token.Record{}, err
	}
	return recordOf(res, c.params.ClientID), nil
}

func (c *interactiveCredential) getToken(ctx context.Context, record token.Record) (token.AccessToken, error) {
	return silentToken(ctx, c.client, record, c.params.Scopes, identity.MFAClaims)
}
