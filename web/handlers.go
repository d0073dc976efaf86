package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
	"github.com/andrebq/secrets/users"
	"github.com/andrebq/secrets/verifier"
)

func (s *Server) renderStatic(name viewName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.views.render(w, r, http.StatusOK, name, s.page(r))
	}
}

func (s *Server) page(r *http.Request) page {
	p := page{Federated: s.provider != nil}
	u, err := s.sessions.Current(r)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Msg("Unable to read session, rendering as anonymous")
	}
	if u != nil {
		p.Authenticated = true
		p.Username = u.Username
	}
	return p
}

const loginFailed = "Invalid username or password."

func credentials(r *http.Request) (username, password string, ok bool) {
	if err := r.ParseForm(); err != nil {
		return "", "", false
	}
	username, password = r.PostForm.Get("username"), r.PostForm.Get("password")
	return username, password, username != "" && password != ""
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	username, password, ok := credentials(r)
	if !ok {
		http.Error(w, "missing username or password", http.StatusBadRequest)
		return
	}
	u, err := s.verifier.Register(ctx, username, password)
	if s.variant.Delegated() {
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Registration failed")
			http.Redirect(w, r, "/register", http.StatusFound)
			return
		}
		s.startSession(w, r, u, "/register")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Unable to register user")
		http.Error(w, "unable to register user", http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Login(w, r, u); err != nil {
		log.Error().Err(err).Msg("Unable to start session")
		http.Error(w, "unable to start session", http.StatusInternalServerError)
		return
	}
	s.renderSecrets(w, r, page{Authenticated: true, Username: u.Username})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	username, password, ok := credentials(r)
	if !ok {
		http.Error(w, "missing username or password", http.StatusBadRequest)
		return
	}
	u, err := s.verifier.Authenticate(ctx, username, password)
	if s.variant.Delegated() {
		if err != nil {
			log.Info().Err(err).Str("username", username).Msg("Login failed")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		s.startSession(w, r, u, "/login")
		return
	}
	switch {
	case errors.Is(err, users.ErrNotFound), errors.Is(err, verifier.ErrInvalidCredentials):
		log.Info().Err(err).Str("username", username).Msg("Login failed")
		s.views.render(w, r, http.StatusOK, viewHome, page{Error: loginFailed})
		return
	case err != nil:
		log.Error().Err(err).Str("username", username).Msg("Unable to authenticate user")
		http.Error(w, "unable to authenticate user", http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Login(w, r, u); err != nil {
		log.Error().Err(err).Msg("Unable to start session")
		http.Error(w, "unable to start session", http.StatusInternalServerError)
		return
	}
	s.renderSecrets(w, r, page{Authenticated: true, Username: u.Username})
}

// startSession logs u in and sends the browser to the secrets page, or to
// fallback when the session cannot be created.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *users.User, fallback string) {
	if err := s.sessions.Login(w, r, u); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to start session")
		http.Redirect(w, r, fallback, http.StatusFound)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	s.renderSecrets(w, r, s.page(r))
}

func (s *Server) renderSecrets(w http.ResponseWriter, r *http.Request, p page) {
	found, err := s.store.FindAllWithSecret(r.Context())
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to list secrets")
		http.Error(w, "unable to list secrets", http.StatusInternalServerError)
		return
	}
	p.Federated = s.provider != nil
	p.Secrets = make([]string, 0, len(found))
	for _, u := range found {
		p.Secrets = append(p.Secrets, *u.Secret)
	}
	s.views.render(w, r, http.StatusOK, viewSecrets, p)
}

// submit only runs behind Protect, the session user is always present.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	current := session.FromContext(ctx)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	secret := r.PostForm.Get("secret")
	if secret == "" {
		http.Error(w, "missing secret", http.StatusBadRequest)
		return
	}
	u, err := s.store.FindByID(ctx, current.ID)
	if errors.Is(err, users.ErrNotFound) {
		log.Warn().Str("user.id", current.ID).Msg("Session references an unknown user")
		if err := s.sessions.Logout(w, r); err != nil {
			log.Error().Err(err).Msg("Unable to logout")
		}
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	} else if err != nil {
		log.Error().Err(err).Str("user.id", current.ID).Msg("Unable to load user")
		http.Error(w, "unable to save secret", http.StatusInternalServerError)
		return
	}
	u.SetSecret(secret)
	if err := s.store.Save(ctx, u); err != nil {
		log.Error().Err(err).Str("user.id", current.ID).Msg("Unable to save secret")
		http.Error(w, "unable to save secret", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(w, r); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to logout")
		http.Error(w, "unable to logout", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) beginFederated(w http.ResponseWriter, r *http.Request) {
	if err := s.provider.Begin(w, r); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to start federated login")
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func (s *Server) completeFederated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	profile, err := s.provider.Complete(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("Federated login failed")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	u, created, err := s.federated.FindOrCreateByExternalID(ctx, profile.Subject)
	if err != nil {
		log.Error().Err(err).Msg("Unable to find or create federated user")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if created {
		log.Info().Str("user.id", u.ID).Msg("New federated user")
	}
	s.startSession(w, r, u, "/login")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status    string `json:"status"`
		Variant   string `json:"variant"`
		Federated bool   `json:"federated"`
	}{
		Status:    "ok",
		Variant:   string(s.variant),
		Federated: s.provider != nil,
	})
}
