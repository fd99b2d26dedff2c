package account

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/parlor/parlor/auth"
	"github.com/parlor/parlor/board"
	"github.com/parlor/parlor/internal/cmdflags"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	dbPath := "parlor.db"
	return &cli.Command{
		Name:  "account",
		Usage: "Manage accounts directly against the board database",
		Flags: []cli.Flag{
			cmdflags.Database(&dbPath),
		},
		Subcommands: []*cli.Command{
			registerCmd(&dbPath),
		},
	}
}

func registerCmd(dbPath *string) *cli.Command {
	var email string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new account (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "Email of the account to register",
				Destination: &email,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				return sc.Err()
			}
			password := strings.TrimSpace(sc.Text())
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			store, err := board.Open(ctx.Context, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			hasher := auth.NewHasher(nil)
			hash, err := hasher.Hash(ctx.Context, []byte(password))
			if err != nil {
				return err
			}
			return store.AddAccount(ctx.Context, board.Account{Email: email, Password: hash})
		},
	}
}
