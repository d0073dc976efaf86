package cmdflags

import (
	"github.com/urfave/cli/v2"
)

// EnvFile points to the dotenv file read before the process environment.
func EnvFile(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = ".env"
	}
	return &cli.StringFlag{
		Name:        "env-file",
		Aliases:     []string{"e"},
		Usage:       "Path to a dotenv file, values from the environment take precedence",
		Value:       *out,
		Destination: out,
	}
}

func DatabaseURL(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"db"},
		Usage:       "User store, a mongodb:// url or a path to a sqlite file (overrides DATABASE_URL)",
		Destination: out,
		Value:       *out,
	}
}

func Variant(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "variant",
		Usage:       "Credential verifier: bcrypt, digest or delegated (overrides VARIANT)",
		Destination: out,
		Value:       *out,
	}
}

func BindAddr(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "bind",
		Usage:       "Address to listen for http requests (overrides BIND_ADDR)",
		Destination: out,
		Value:       *out,
	}
}
