package serve

import (
	"os"

	"github.com/parlor/parlor/auth"
	"github.com/parlor/parlor/board"
	"github.com/parlor/parlor/internal/cmdflags"
	"github.com/parlor/parlor/internal/httpserver"
	"github.com/parlor/parlor/internal/logutil"
	"github.com/parlor/parlor/moderation"
	"github.com/parlor/parlor/web"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	bindAddr := "localhost:3031"
	dbPath := "parlor.db"
	logLevel := "warn"
	badWordsURL := moderation.DefaultBaseURL
	cryptoWorkers := 0
	var tokenKeyEnvVar string
	var badWordsKeyEnvVar string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Q&A API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind the API server",
				Value:       bindAddr,
				Destination: &bindAddr,
			},
			cmdflags.Database(&dbPath),
			cmdflags.TokenKeyEnvVar(&tokenKeyEnvVar),
			cmdflags.BadWordsKeyEnvVar(&badWordsKeyEnvVar),
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Which events to log (info, warn or error)",
				Value:       logLevel,
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "bad-words-url",
				Usage:       "Base URL of the bad-words API",
				Value:       badWordsURL,
				Destination: &badWordsURL,
			},
			&cli.IntFlag{
				Name:        "crypto-workers",
				Usage:       "How many password/token operations may run at once (0 picks a default)",
				Value:       cryptoWorkers,
				Destination: &cryptoWorkers,
			},
		},
		Action: func(ctx *cli.Context) error {
			log := logutil.Root(logLevel)
			appCtx := logutil.WithLogger(ctx.Context, log)

			keyfn, err := auth.KeyFnFromEnv(tokenKeyEnvVar, os.Getenv, os.Setenv)
			if err != nil {
				return err
			}
			badWordsKey, err := moderation.KeyFromEnv(badWordsKeyEnvVar, os.Getenv, os.Setenv)
			if err != nil {
				return err
			}

			store, err := board.Open(appCtx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			pool := auth.NewLimiter(cryptoWorkers)
			tokens, err := auth.NewTokenCodec(appCtx, keyfn, pool)
			if err != nil {
				return err
			}
			mod, err := moderation.New(badWordsURL, badWordsKey)
			if err != nil {
				return err
			}
			handler := web.NewHandler(store, auth.NewHasher(pool), tokens, mod)
			return httpserver.Serve(appCtx, bindAddr, handler)
		},
	}
}
