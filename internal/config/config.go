// Package config loads the application settings from an optional .env file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		// BindAddr is the address the http server listens on.
		BindAddr string `mapstructure:"BIND_ADDR"`
		// DatabaseURL selects the user store, see users.Open.
		DatabaseURL string `mapstructure:"DATABASE_URL"`
		// Variant is the credential verifier: bcrypt, digest or delegated.
		Variant    string `mapstructure:"VARIANT"`
		BcryptCost int    `mapstructure:"BCRYPT_COST"`

		// ClientID and ClientSecret enable Google logins (delegated variant only).
		ClientID         string `mapstructure:"CLIENT_ID"`
		ClientSecret     string `mapstructure:"CLIENT_SECRET"`
		OAuthCallbackURL string `mapstructure:"OAUTH_CALLBACK_URL"`

		// SessionStore is "memory" or a redis:// url.
		SessionStore string `mapstructure:"SESSION_STORE"`
		SessionTTL   string `mapstructure:"SESSION_TTL"`
		CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

		LogLevel  string `mapstructure:"LOG_LEVEL"`
		LogFormat string `mapstructure:"LOG_FORMAT"`
	}
)

const (
	DefaultDatabaseURL = "mongodb://127.0.0.1:27017/userDB"
	DefaultCallbackURL = "http://localhost:3000/auth/google/secrets"
)

// Load reads envFile (when it exists) and then the environment, the
// environment wins. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	v := viper.New()

	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("BIND_ADDR", "localhost:3000")
	v.SetDefault("DATABASE_URL", DefaultDatabaseURL)
	v.SetDefault("VARIANT", "delegated")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("CLIENT_ID", "")
	v.SetDefault("CLIENT_SECRET", "")
	v.SetDefault("OAUTH_CALLBACK_URL", DefaultCallbackURL)
	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unable to decode, cause %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late, at the first
// request.
func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return errors.New("config: BIND_ADDR must be set")
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if (c.ClientID == "") != (c.ClientSecret == "") {
		return errors.New("config: CLIENT_ID and CLIENT_SECRET must be set together")
	}
	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		return fmt.Errorf("config: SESSION_TTL %q is not a positive duration", c.SessionTTL)
	}
	return nil
}

// TTL is the parsed SessionTTL, 24h when unset or invalid.
func (c *Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// FederationEnabled reports whether Google logins can be offered.
func (c *Config) FederationEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
