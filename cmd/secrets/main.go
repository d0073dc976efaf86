package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrebq/secrets/cmd/secrets/serve"
	"github.com/andrebq/secrets/cmd/secrets/users"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var envFile string
	app := &cli.App{
		Name:  "secrets",
		Usage: "Don't keep your secrets, share them anonymously!",
		Flags: []cli.Flag{
			cmdflags.EnvFile(&envFile),
		},
		Commands: []*cli.Command{
			serve.Cmd(&envFile),
			users.Cmd(&envFile),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
