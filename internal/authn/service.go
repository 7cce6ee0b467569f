package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/tokenbroker/internal/bridge"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/account"
	"github.com/systmms/tokenbroker/pkg/token"
)

// Service authenticates accounts for a session.
type Service struct {
	sess           *session.Session
	authenticators map[Kind]Authenticator
}

// NewService builds the dispatch table for every flow.
func NewService(sess *session.Session) *Service {
	s := &Service{sess: sess, authenticators: make(map[Kind]Authenticator, len(Kinds))}
	for _, k := range Kinds {
		s.authenticators[k] = authenticatorFor(k, sess)
	}
	return s
}

// authenticatorFor returns the authenticator for k.
func authenticatorFor(k Kind, sess *session.Session) Authenticator {
	switch k {
	case KindInteractive:
		return newInteractiveAuthenticator(sess)
	case KindDeviceCode:
		return &deviceCodeAuthenticator{sess: sess}
	case KindUsernamePassword:
		return &usernamePasswordAuthenticator{sess: sess}
	case KindRefreshToken:
		return &refreshTokenAuthenticator{sess: sess}
	case KindSilent:
		return &silentAuthenticator{sess: sess}
	default:
		panic(fmt.Sprintf("authn: no authenticator for %s", k))
	}
}

// Authenticate resolves req, runs the selected flow in the background and
// returns the unified result. On success the caller's account is updated
// with the tenant, username and home account id that signed in, and becomes
// the session's current context.
func (s *Service) Authenticate(ctx context.Context, req Request) (token.Result, error) {
	log := s.sess.Logger.With("correlation_id", uuid.NewString())

	params, err := Resolve(s.sess, req)
	if err != nil {
		return token.Result{}, err
	}
	params.Logger = log
	log.Debug("Authenticating %s with the %s flow in %s", params.Account.Username, params.Kind, params.Environment.Name)

	auth, ok := s.authenticators[params.Kind]
	if !ok {
		return token.Result{}, fmt.Errorf("no authenticator for %s", params.Kind)
	}

	start := time.Now()
	res, err := s.run(ctx, auth, params)
	s.sess.Metrics.RecordAuthentication(params.Kind.String(), err, time.Since(start))
	if err != nil {
		log.Debug("%s authentication failed: %v", params.Kind, err)
		return token.Result{}, err
	}

	backfill(req.Account, res)
	s.sess.SetContext(req.Account, params.Environment)
	log.Debug("Authenticated %s in tenant %s", res.Username, res.TenantID)
	return res, nil
}

// run executes auth behind a bridge when a host is attached.
func (s *Service) run(ctx context.Context, auth Authenticator, p Parameters) (token.Result, error) {
	var res *token.Result
	work := func(ctx context.Context) error {
		r, err := auth.Authenticate(ctx, p)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("%s authenticator declined %s parameters", auth.Kind(), p.Kind)
		}
		res = r
		return nil
	}

	b, err := bridge.New(s.sess, bridge.WithMetrics(s.sess.Metrics))
	switch {
	case errors.Is(err, bridge.ErrNoHost):
		err = work(ctx)
	case err != nil:
		return token.Result{}, err
	default:
		defer func() { _ = b.Close() }()
		err = b.Run(ctx, work)
	}
	if err != nil {
		return token.Result{}, err
	}
	return *res, nil
}

func backfill(acct *account.Account, res token.Result) {
	if res.TenantID != "" {
		acct.Tenant = res.TenantID
	}
	if res.Username != "" {
		acct.Username = res.Username
	}
	if res.HomeAccountID != "" {
		acct.SetProperty(account.PropertyHomeAccountID, res.HomeAccountID)
	}
}

// Disconnect signs acct out of the token cache and clears the current
// context. A nil acct disconnects the current context's account.
func (s *Service) Disconnect(ctx context.Context, acct *account.Account, env account.Environment) error {
	if acct == nil {
		cur := s.sess.CurrentContext()
		if cur == nil {
			return nil
		}
		acct, env = cur.Account, cur.Environment
	}
	if cache, ok := s.sess.TokenCache(); ok {
		if err := cache.RemoveAccount(ctx, acct, env); err != nil {
			return err
		}
	}
	s.sess.ClearContext()
	return nil
}
