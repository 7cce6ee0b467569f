package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/config"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/pkg/account"
)

func NewEnvironmentCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environment",
		Aliases: []string{"env"},
		Short:   "Manage authentication environments",
	}
	cmd.AddCommand(
		newEnvironmentListCommand(app),
		newEnvironmentAddCommand(app),
		newEnvironmentRemoveCommand(app),
	)
	return cmd
}

func newEnvironmentListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and user-defined environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.Session(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tAUTHORITY\tAPI ENDPOINT")
			for _, env := range sess.Environments.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", env.Name, env.Type, env.ActiveDirectoryAuthority, env.APIEndpoint)
			}
			return w.Flush()
		},
	}
}

func newEnvironmentAddCommand(app *App) *cobra.Command {
	var env config.EnvironmentSettings

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a user-defined environment",
		Long: `Add a user-defined environment to the configuration file.

Examples:
  tokenbroker environment add Stack --authority https://login.contoso.test/ \
      --api-endpoint https://graph.contoso.test/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env.Name = args[0]
			sess, err := app.Session(cmd)
			if err != nil {
				return err
			}
			if existing, ok := sess.Environments.Get(env.Name); ok && existing.Type == account.BuiltIn {
				return tberrors.UserError{
					Message:    fmt.Sprintf("%s is a built-in environment", existing.Name),
					Suggestion: "Choose another name",
				}
			}

			settings := app.Config.Settings
			settings.SetEnvironment(env)
			if err := settings.Validate(); err != nil {
				settings.RemoveEnvironment(env.Name)
				return err
			}
			if err := app.Config.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved environment %s to %s\n", env.Name, app.Config.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&env.Authority, "authority", "", "Authority URL (required)")
	cmd.Flags().StringVar(&env.ApplicationID, "application-id", "", "Application (client) id")
	cmd.Flags().StringVar(&env.APIEndpoint, "api-endpoint", "", "API endpoint tokens are requested for")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

func newEnvironmentRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a user-defined environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Session(cmd); err != nil {
				return err
			}
			if !app.Config.Settings.RemoveEnvironment(args[0]) {
				return tberrors.UserError{
					Message:    fmt.Sprintf("No user-defined environment named %s", args[0]),
					Suggestion: "Run 'tokenbroker environment list' to see available environments",
				}
			}
			if err := app.Config.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed environment %s\n", args[0])
			return nil
		},
	}
}
