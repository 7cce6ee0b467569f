package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/authn"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

func NewDisconnectCommand(app *App) *cobra.Command {
	var flags accountFlags

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Remove an account from the token cache",
		Long: `Remove a cached account, matched by username or home account id.

Examples:
  tokenbroker disconnect -u me@contoso.com
  tokenbroker disconnect --home-account-id <oid>.<tid>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.username == "" && flags.homeAccountID == "" {
				return tberrors.UserError{
					Message:    "No account given",
					Suggestion: "Pass --username or --home-account-id",
				}
			}
			sess, err := app.Session(cmd)
			if err != nil {
				return err
			}
			acct, err := flags.account()
			if err != nil {
				return err
			}
			env, err := flags.resolveEnvironment(sess)
			if err != nil {
				return err
			}

			if err := authn.NewService(sess).Disconnect(commandContext(cmd), acct, env); err != nil {
				return err
			}
			name := flags.username
			if name == "" {
				name = flags.homeAccountID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s from %s\n", name, env.Name)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
