package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/authn"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/secure"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/pkg/account"
)

// accountFlags describe the account to authenticate.
type accountFlags struct {
	environment   string
	tenant        string
	username      string
	accountType   string
	applicationID string
	homeAccountID string
	deviceCode    bool
	authCode      bool
	password      bool
	refreshToken  bool
	scopes        []string
}

func (f *accountFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.environment, "environment", "e", "", "Environment to authenticate against (default from config)")
	fl.StringVarP(&f.tenant, "tenant", "t", "", "Tenant id or domain")
	fl.StringVarP(&f.username, "username", "u", "", "Account username")
	fl.StringVar(&f.accountType, "account-type", account.User.String(), "Account type")
	fl.StringVar(&f.applicationID, "application-id", "", "Application (client) id overriding the environment's")
	fl.StringVar(&f.homeAccountID, "home-account-id", "", "Home account id of a cached account, for silent sign-in")
	fl.BoolVar(&f.deviceCode, "device-code", false, "Sign in with a device code")
	fl.BoolVar(&f.authCode, "auth-code", false, "Sign in through the browser")
	fl.BoolVar(&f.password, "password", false, "Prompt for a password and sign in with it")
	fl.BoolVar(&f.refreshToken, "refresh-token", false, "Prompt for a refresh token and redeem it")
	fl.StringSliceVar(&f.scopes, "scope", nil, "Scopes to request (default <api-endpoint>/.default)")
}

func (f *accountFlags) account() (*account.Account, error) {
	t, err := account.ParseType(f.accountType)
	if err != nil {
		return nil, tberrors.UserError{
			Message:    err.Error(),
			Suggestion: "Use --account-type User",
		}
	}
	acct := account.New(t, f.tenant, f.username)
	if f.applicationID != "" {
		acct.SetProperty(account.PropertyApplicationID, f.applicationID)
	}
	if f.homeAccountID != "" {
		acct.SetProperty(account.PropertyHomeAccountID, f.homeAccountID)
	}
	if f.deviceCode {
		acct.SetProperty(account.PropertyUseDeviceCode, "true")
	}
	if f.authCode {
		acct.SetProperty(account.PropertyUseAuthCode, "true")
	}
	return acct, nil
}

func (f *accountFlags) resolveEnvironment(sess *session.Session) (account.Environment, error) {
	env, ok := sess.Environment(f.environment)
	if !ok {
		return account.Environment{}, tberrors.UserError{
			Message:    fmt.Sprintf("Unknown environment: %s", f.environment),
			Suggestion: "Run 'tokenbroker environment list' to see available environments",
		}
	}
	return env, nil
}

// secrets prompts for the password and refresh token the flags ask for.
func (f *accountFlags) secrets(ctx context.Context, sess *session.Session) (password, refreshToken *secure.SecureBuffer, err error) {
	if f.password {
		if f.username == "" {
			return nil, nil, tberrors.UserError{
				Message:    "--password requires --username",
				Suggestion: "Pass the account name with --username",
			}
		}
		if password, err = promptSecret(ctx, sess, "Password"); err != nil {
			return nil, nil, err
		}
	}
	if f.refreshToken {
		if refreshToken, err = promptSecret(ctx, sess, "Refresh token"); err != nil {
			return nil, nil, err
		}
	}
	return password, refreshToken, nil
}

// request builds the authentication request described by the flags.
func (f *accountFlags) request(ctx context.Context, sess *session.Session) (authn.Request, error) {
	acct, err := f.account()
	if err != nil {
		return authn.Request{}, err
	}
	env, err := f.resolveEnvironment(sess)
	if err != nil {
		return authn.Request{}, err
	}
	password, rt, err := f.secrets(ctx, sess)
	if err != nil {
		return authn.Request{}, err
	}
	return authn.Request{
		Account:      acct,
		Environment:  env,
		Scopes:       f.scopes,
		Password:     password,
		RefreshToken: rt,
	}, nil
}

func promptSecret(ctx context.Context, sess *session.Session, label string) (*secure.SecureBuffer, error) {
	host := sess.Host()
	if host == nil {
		return nil, fmt.Errorf("cannot prompt for %s without a terminal", strings.ToLower(label))
	}
	answer, err := host.Prompt(ctx, label, true)
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, tberrors.UserError{Message: fmt.Sprintf("%s must not be empty", label)}
	}
	return secure.FromString(answer), nil
}
