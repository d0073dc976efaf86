// Package federation runs the OAuth 2.0 authorization code flow against an
// identity provider and returns the profile it asserts.
//
// Only the stable subject of the profile matters to the application, it
// becomes the external id of the user record.
package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type (
	// Profile is the identity asserted by the provider.
	Profile struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}

	Config struct {
		ClientID     string
		ClientSecret string
		CallbackURL  string
		// Endpoint defaults to google.Endpoint
		Endpoint oauth2.Endpoint
		// UserInfoURL defaults to DefaultUserInfoURL
		UserInfoURL string
		// AllowHTTPCookie drops the Secure flag from the state cookie
		AllowHTTPCookie bool
	}

	// Provider starts and completes logins with a single identity provider.
	Provider struct {
		oauth          *oauth2.Config
		userInfoURL    string
		insecureCookie bool
	}

	// HandshakeError is returned by Complete when the provider (or the
	// browser) sent back something that cannot finish the login.
	HandshakeError struct {
		Reason string
		cause  error
	}
)

const (
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	stateCookie   = "secrets.oauthstate"
	stateLifetime = 10 * time.Minute
)

var (
	ErrNotConfigured = errors.New("federated login requires a client id and a client secret")
)

func (h HandshakeError) Error() string {
	if h.cause != nil {
		return fmt.Sprintf("federated login failed: %v, cause %v", h.Reason, h.cause)
	}
	return fmt.Sprintf("federated login failed: %v", h.Reason)
}

func (h HandshakeError) Unwrap() error {
	return h.cause
}

// NewGoogle returns a Provider for Google accounts, endpoints can be
// replaced through cfg (tests do that).
func NewGoogle(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     cfg.Endpoint,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "profile"},
		},
		userInfoURL:    cfg.UserInfoURL,
		insecureCookie: cfg.AllowHTTPCookie,
	}, nil
}

// Begin redirects the browser to the provider consent screen. A random
// state is kept in a short lived cookie and checked by Complete.
func (p *Provider) Begin(w http.ResponseWriter, r *http.Request) error {
	state, err := randomState()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateLifetime / time.Second),
		HttpOnly: true,
		Secure:   !p.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)
	return nil
}

// Complete handles the provider callback: it checks the state, exchanges
// the code and fetches the user profile.
func (p *Provider) Complete(w http.ResponseWriter, r *http.Request) (*Profile, error) {
	ctx := r.Context()
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return nil, HandshakeError{Reason: fmt.Sprintf("provider returned %v", e)}
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		return nil, HandshakeError{Reason: "state mismatch"}
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})
	code := q.Get("code")
	if code == "" {
		return nil, HandshakeError{Reason: "missing authorization code"}
	}
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, HandshakeError{Reason: "unable to exchange code", cause: err}
	}
	return p.fetchProfile(ctx, tok)
}

func (p *Provider) fetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, HandshakeError{Reason: "unable to fetch profile", cause: err}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		return nil, HandshakeError{Reason: fmt.Sprintf("profile endpoint returned %v", res.Status)}
	}
	var profile Profile
	err = json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&profile)
	if err != nil {
		return nil, HandshakeError{Reason: "unable to decode profile", cause: err}
	}
	if profile.Subject == "" {
		return nil, HandshakeError{Reason: "profile without subject"}
	}
	return &profile, nil
}

func randomState() (string, error) {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("unable to generate oauth state, cause %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
