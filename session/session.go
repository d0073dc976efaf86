// Package session maps an authenticated user to a token carried by a
// cookie.
//
// The browser only ever sees a random token, what the token means is kept
// in a TokenStore. Nothing is written to the TokenStore (and no cookie is
// sent) until a login happens, anonymous browsing is free.
//
// A session only remembers who the user is (id and username), handlers
// that need the full record must load it from the user store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/users"
	"github.com/google/uuid"
)

type (
	// User is the minimal reference kept inside a session.
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}

	// Manager issues, reads and invalidates sessions.
	Manager struct {
		tokens         TokenStore
		cookieName     string
		ttl            time.Duration
		insecureCookie bool
	}

	key byte
)

const (
	DefaultCookieName = "secrets.sid"
)

var (
	userKey = key(1)
)

// NewManager returns a Manager backed by tokens. When allowHTTPCookie is
// true the cookie is sent without the Secure flag (eg.: plain http on
// localhost).
func NewManager(tokens TokenStore, ttl time.Duration, allowHTTPCookie bool) *Manager {
	return &Manager{
		tokens:         tokens,
		cookieName:     DefaultCookieName,
		ttl:            ttl,
		insecureCookie: allowHTTPCookie,
	}
}

// Login moves the request to the authenticated state for u. Any session
// previously attached to r is discarded.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, u *users.User) error {
	ctx := r.Context()
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		if err := m.tokens.Delete(ctx, c.Value); err != nil {
			log := logutil.GetOrDefault(ctx)
			log.Warn().Err(err).Msg("Unable to discard previous session")
		}
	}
	payload, err := json.Marshal(User{ID: u.ID, Username: u.Username})
	if err != nil {
		return fmt.Errorf("unable to serialize session, cause %w", err)
	}
	token := uuid.NewString()
	err = m.tokens.Save(ctx, token, payload)
	if err != nil {
		return fmt.Errorf("unable to store session, cause %w", err)
	}
	http.SetCookie(w, m.cookie(token, int(m.ttl/time.Second)))
	return nil
}

// Current returns the user attached to r, or nil when r is anonymous.
func (m *Manager) Current(r *http.Request) (*User, error) {
	if u := FromContext(r.Context()); u != nil {
		return u, nil
	}
	c, err := r.Cookie(m.cookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	payload, found, err := m.tokens.Lookup(r.Context(), c.Value)
	if err != nil {
		return nil, fmt.Errorf("unable to lookup session, cause %w", err)
	} else if !found {
		return nil, nil
	}
	var u User
	err = json.Unmarshal(payload, &u)
	if err != nil {
		return nil, fmt.Errorf("unable to decode session, cause %w", err)
	}
	return &u, nil
}

// Logout moves the request back to the anonymous state.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	c, err := r.Cookie(m.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return nil
	} else if err != nil {
		return err
	}
	err = m.tokens.Delete(r.Context(), c.Value)
	if err != nil {
		return fmt.Errorf("unable to invalidate session, cause %w", err)
	}
	http.SetCookie(w, m.cookie("", -1))
	return nil
}

// Protect only calls sensitive when the request carries a valid session,
// anonymous requests are redirected to loginPath. The session user is
// available to sensitive through FromContext.
func (m *Manager) Protect(loginPath string, sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		u, err := m.Current(r)
		if err != nil {
			log := logutil.GetOrDefault(ctx)
			log.Error().Err(err).Msg("Unexpected error when checking for session")
		}
		if u == nil {
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
	})
}

func (m *Manager) Close() error {
	return m.tokens.Close()
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !m.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext returns the user placed by Protect, or nil.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}
