package serve

import (
	"fmt"
	"os"

	"github.com/andrebq/secrets/federation"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/internal/httpserver"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
	"github.com/andrebq/secrets/users"
	"github.com/andrebq/secrets/verifier"
	"github.com/andrebq/secrets/web"
	"github.com/urfave/cli/v2"
)

func Cmd(envFile *string) *cli.Command {
	var bindAddr, databaseURL, variantName string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the secrets web application",
		Flags: []cli.Flag{
			cmdflags.BindAddr(&bindAddr),
			cmdflags.DatabaseURL(&databaseURL),
			cmdflags.Variant(&variantName),
		},
		Action: func(appCtx *cli.Context) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if bindAddr != "" {
				cfg.BindAddr = bindAddr
			}
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			if variantName != "" {
				cfg.Variant = variantName
			}
			variant, err := verifier.ParseVariant(cfg.Variant)
			if err != nil {
				return err
			}

			logger, err := logutil.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("invalid LOG_LEVEL, cause %w", err)
			}
			ctx := logutil.WithLogger(appCtx.Context, logger)

			store, err := users.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			tokens, err := session.OpenTokenStore(ctx, cfg.SessionStore, cfg.TTL())
			if err != nil {
				return err
			}
			sessions := session.NewManager(tokens, cfg.TTL(), !cfg.CookieSecure)
			defer sessions.Close()

			var provider *federation.Provider
			if variant.Delegated() && cfg.FederationEnabled() {
				provider, err = federation.NewGoogle(federation.Config{
					ClientID:        cfg.ClientID,
					ClientSecret:    cfg.ClientSecret,
					CallbackURL:     cfg.OAuthCallbackURL,
					AllowHTTPCookie: !cfg.CookieSecure,
				})
				if err != nil {
					return err
				}
			} else if variant.Delegated() {
				logger.Warn().Msg("CLIENT_ID and CLIENT_SECRET are empty, google logins are disabled")
			}

			srv, err := web.New(web.Options{
				Store:      store,
				Sessions:   sessions,
				Variant:    variant,
				BcryptCost: cfg.BcryptCost,
				Provider:   provider,
			})
			if err != nil {
				return err
			}
			logger.Info().
				Str("variant", string(variant)).
				Bool("federation", srv.FederationEnabled()).
				Str("session.store", cfg.SessionStore).
				Msg("Secrets configured")
			return httpserver.Serve(ctx, cfg.BindAddr, srv.Handler(), httpserver.Timeouts{})
		},
	}
}
