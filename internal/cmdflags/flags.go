package cmdflags

import (
	"github.com/parlor/parlor/auth"
	"github.com/parlor/parlor/moderation"
	"github.com/urfave/cli/v2"
)

func Database(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"d", "db"},
		Usage:       "Path to the board database",
		Destination: out,
		Value:       *out,
	}
}

func TokenKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = auth.TokenKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "token-key-envvar-name",
		Usage:       "Name of the environment variable that holds the token key. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}

func BadWordsKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = moderation.APIKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "bad-words-key-envvar-name",
		Usage:       "Name of the environment variable that holds the bad-words API key. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}
