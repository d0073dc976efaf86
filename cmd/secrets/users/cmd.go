package users

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/users"
	"github.com/andrebq/secrets/verifier"
	"github.com/urfave/cli/v2"
)

type (
	storeRef struct {
		cfg   *config.Config
		store users.Store
	}
)

func Cmd(envFile *string) *cli.Command {
	var ref storeRef
	var databaseURL string
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the user store directly",
		Flags: []cli.Flag{
			cmdflags.DatabaseURL(&databaseURL),
		},
		Before: func(ctx *cli.Context) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			ref.cfg = cfg
			ref.store, err = users.Open(ctx.Context, cfg.DatabaseURL)
			return err
		},
		After: func(ctx *cli.Context) error {
			if ref.store == nil {
				return nil
			}
			return ref.store.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&ref),
			listSecretsCmd(&ref),
		},
	}
}

func registerCmd(ref *storeRef) *cli.Command {
	var username string
	var variantName string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Name of the user to register",
				Destination: &username,
				Required:    true,
			},
			cmdflags.Variant(&variantName),
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			if variantName == "" {
				variantName = ref.cfg.Variant
			}
			variant, err := verifier.ParseVariant(variantName)
			if err != nil {
				return err
			}
			v, err := verifier.New(variant, ref.store, ref.cfg.BcryptCost)
			if err != nil {
				return err
			}
			u, err := v.Register(ctx.Context, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, u.ID)
			return nil
		},
	}
}

func listSecretsCmd(ref *storeRef) *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Print every secret shared so far, one per line",
		Action: func(ctx *cli.Context) error {
			list, err := ref.store.FindAllWithSecret(ctx.Context)
			if err != nil {
				return err
			}
			for _, u := range list {
				fmt.Fprintln(ctx.App.Writer, *u.Secret)
			}
			return nil
		},
	}
}
