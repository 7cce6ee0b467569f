package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/session"
	"github.com/systmms/tokenbroker/internal/tokencache"
)

func NewCacheCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the token cache",
	}
	cmd.AddCommand(newCacheVerifyCommand(app), newCacheClearCommand(app))
	return cmd
}

func tokenCache(app *App, cmd *cobra.Command) (tokencache.Provider, error) {
	sess, err := app.Session(cmd)
	if err != nil {
		return nil, err
	}
	cache, ok := sess.TokenCache()
	if !ok {
		return nil, tberrors.Configuration(nil, "no %s is registered", session.TokenCacheProvider)
	}
	return cache, nil
}

func newCacheVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the token cache storage is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := tokenCache(app, cmd)
			if err != nil {
				return err
			}
			opts := cache.PersistenceOptions()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Storage:   %s\n", opts.Tier)
			if opts.Tier != tokencache.TierMemory {
				fmt.Fprintf(out, "Directory: %s\n", opts.Directory)
				fmt.Fprintf(out, "Encrypted: %t\n", opts.Encrypted)
			}
			if err := cache.VerifyPersistence(commandContext(cmd)); err != nil {
				fmt.Fprintln(out, "Status:    unusable")
				return err
			}
			fmt.Fprintln(out, "Status:    ok")
			return nil
		},
	}
}

func newCacheClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached account and token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := tokenCache(app, cmd)
			if err != nil {
				return err
			}
			if err := cache.Clear(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token cache cleared")
			return nil
		},
	}
}
