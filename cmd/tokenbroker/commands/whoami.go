package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/authn"
	"github.com/systmms/tokenbroker/internal/directory"
)

func NewWhoamiCommand(app *App) *cobra.Command {
	var flags accountFlags

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in principal as the directory sees it",
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

			opts := []directory.Option{directory.WithLogger(sess.Logger)}
			if app.DirectoryTransport != nil {
				opts = append(opts, directory.WithTransport(app.DirectoryTransport))
			}
			client, err := directory.New(req.Environment, res, opts...)
			if err != nil {
				return err
			}
			me, err := client.Me(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", me.DisplayName)
			fmt.Fprintf(out, "  User principal name: %s\n", me.UserPrincipalName)
			fmt.Fprintf(out, "  Object id:           %s\n", me.ID)
			fmt.Fprintf(out, "  Tenant:              %s\n", res.TenantID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
