package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/parlor/parlor/cmd/parlor/account"
	"github.com/parlor/parlor/cmd/parlor/serve"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "parlor",
		Usage: "A small Q&A service with an authenticated trust boundary",
		Commands: []*cli.Command{
			serve.Cmd(),
			account.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
