package federation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func fakeProvider(t *testing.T, subject string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.FormValue("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Profile{Subject: subject, Name: "Bob"})
	})
	return httptest.NewServer(mux)
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	p, err := NewGoogle(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackURL:  "http://localhost:3000/auth/google/secrets",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		UserInfoURL:     srv.URL + "/userinfo",
		AllowHTTPCookie: true,
	})
	require.NoError(t, err)
	return p
}

func TestNotConfigured(t *testing.T) {
	_, err := NewGoogle(Config{ClientID: "only-id"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestHandshake(t *testing.T) {
	srv := fakeProvider(t, "108273649")
	defer srv.Close()
	p := newTestProvider(t, srv)

	rec := httptest.NewRecorder()
	require.NoError(t, p.Begin(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil)))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/auth", location.Path)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	require.Equal(t, "client", location.Query().Get("client_id"))
	require.Equal(t, "http://localhost:3000/auth/google/secrets", location.Query().Get("redirect_uri"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, state, cookies[0].Value)

	callback := httptest.NewRequest(http.MethodGet, "/auth/google/secrets?code=good-code&state="+url.QueryEscape(state), nil)
	callback.AddCookie(cookies[0])
	profile, err := p.Complete(httptest.NewRecorder(), callback)
	require.NoError(t, err)
	require.Equal(t, "108273649", profile.Subject)
}

func TestHandshakeFailures(t *testing.T) {
	srv := fakeProvider(t, "108273649")
	defer srv.Close()
	p := newTestProvider(t, srv)

	type testCase struct {
		name   string
		query  string
		cookie string
	}
	for _, tc := range []testCase{
		{"provider error", "?error=access_denied", "abc"},
		{"missing cookie", "?code=good-code&state=abc", ""},
		{"state mismatch", "?code=good-code&state=abc", "xyz"},
		{"missing code", "?state=abc", "abc"},
		{"bad code", "?code=bad-code&state=abc", "abc"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/secrets"+tc.query, nil)
		if tc.cookie != "" {
			req.AddCookie(&http.Cookie{Name: stateCookie, Value: tc.cookie})
		}
		_, err := p.Complete(httptest.NewRecorder(), req)
		if !errors.As(err, &HandshakeError{}) {
			t.Errorf("%v: expecting HandshakeError got %v", tc.name, err)
		}
	}
}

func TestProfileWithoutSubject(t *testing.T) {
	srv := fakeProvider(t, "")
	defer srv.Close()
	p := newTestProvider(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/secrets?code=good-code&state=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "abc"})
	_, err := p.Complete(httptest.NewRecorder(), req)
	require.Error(t, err)
}
