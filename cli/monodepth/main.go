// Package main is the monodepth command itself.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/monodepth/cli"
	"go.viam.com/monodepth/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logging.Global().Error(err)
		stop()
		//nolint:gocritic
		os.Exit(1)
	}
}
