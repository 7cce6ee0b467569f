package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/authn"
)

func NewConnectCommand(app *App) *cobra.Command {
	var flags accountFlags

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Sign in and cache the account",
		Long: `Sign in to an environment and store the account in the token cache.

The flow is picked from the flags: a device code, the browser, a password or
a refresh token. With --home-account-id the cached account is used silently.

Examples:
  tokenbroker connect                              # Browser sign-in
  tokenbroker connect --device-code                # Sign in on another device
  tokenbroker connect -u svc@contoso.com --password
  tokenbroker connect --home-account-id <oid>.<tid> -u me@contoso.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.Session(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			req, err := flags.request(ctx, sess)
			if err != nil {
				return err
			}

			res, err := authn.NewService(sess).Authenticate(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected as %s\n", res.Username)
			fmt.Fprintf(out, "  Tenant:          %s\n", res.TenantID)
			fmt.Fprintf(out, "  Environment:     %s\n", req.Environment.Name)
			fmt.Fprintf(out, "  Home account id: %s\n", res.HomeAccountID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
