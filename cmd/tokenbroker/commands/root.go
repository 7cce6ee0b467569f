package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/logging"
)

// NewRootCommand builds the tokenbroker command tree over app.
func NewRootCommand(app *App, version string) *cobra.Command {
	var (
		noColor bool
		debug   bool
	)

	root := &cobra.Command{
		Use:   "tokenbroker",
		Short: "Acquire and cache identity tokens",
		Long: `tokenbroker signs accounts in to an identity provider with the flow their
details call for, caches the result and hands out access tokens.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.Config.Logger = logging.New(debug, noColor)
		},
	}

	fl := root.PersistentFlags()
	fl.StringVar(&app.Config.Path, "config", "", "Config file path (default "+defaultConfigHint+")")
	fl.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fl.BoolVar(&debug, "debug", false, "Enable debug logging")
	fl.BoolVar(&app.Config.NonInteractive, "non-interactive", false, "Fail instead of prompting")
	fl.StringVar(&app.MetricsTextfile, "metrics-textfile", "", "Write metrics to this file on exit")

	root.AddCommand(
		NewConnectCommand(app),
		NewDisconnectCommand(app),
		NewTokenCommand(app),
		NewWhoamiCommand(app),
		NewBulkTokenCommand(app),
		NewEnvironmentCommand(app),
		NewCacheCommand(app),
	)
	return root
}

const defaultConfigHint = "<user config dir>/tokenbroker/config.yaml"
