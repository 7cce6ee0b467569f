package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/systmms/tokenbroker/cmd/tokenbroker/commands"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", tberrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := commands.NewApp()
	root := commands.NewRootCommand(app, fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))

	err := root.ExecuteContext(ctx)
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if app.Config.Logger != nil {
		_ = app.Config.Logger.Sync()
	}
	return err
}
