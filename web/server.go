// Package web exposes the secrets application over http.
package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/andrebq/secrets/federation"
	"github.com/andrebq/secrets/session"
	"github.com/andrebq/secrets/users"
	"github.com/andrebq/secrets/verifier"
	"github.com/julienschmidt/httprouter"
)

type (
	// Options wires the collaborators of a Server, Store, Sessions and
	// Variant are required.
	Options struct {
		Store      users.Store
		Sessions   *session.Manager
		Variant    verifier.Variant
		BcryptCost int
		// Provider enables Google logins, only honored by the delegated
		// variant.
		Provider *federation.Provider
	}

	// Server holds everything a request needs, there is no other shared
	// state.
	Server struct {
		store     users.Store
		sessions  *session.Manager
		variant   verifier.Variant
		verifier  verifier.Verifier
		federated *verifier.Federated
		provider  *federation.Provider
		views     *views
	}
)

func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Sessions == nil {
		return nil, errors.New("web: store and session manager are required")
	}
	v, err := verifier.New(opts.Variant, opts.Store, opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	tpl, err := loadViews()
	if err != nil {
		return nil, fmt.Errorf("unable to parse views, cause %w", err)
	}
	s := &Server{
		store:    opts.Store,
		sessions: opts.Sessions,
		variant:  opts.Variant,
		verifier: v,
		views:    tpl,
	}
	if opts.Variant.Delegated() {
		s.federated = verifier.NewFederated(opts.Store)
		s.provider = opts.Provider
	}
	return s, nil
}

// Handler returns the dispatch table of the application.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.HandlerFunc("GET", "/", s.renderStatic(viewHome))
	router.HandlerFunc("GET", "/login", s.renderStatic(viewLogin))
	router.HandlerFunc("GET", "/register", s.renderStatic(viewRegister))
	router.HandlerFunc("POST", "/register", s.register)
	router.HandlerFunc("POST", "/login", s.login)
	router.HandlerFunc("GET", "/secrets", s.listSecrets)
	router.Handler("GET", "/submit", s.sessions.Protect("/login", s.renderStatic(viewSubmit)))
	router.Handler("POST", "/submit", s.sessions.Protect("/login", http.HandlerFunc(s.submit)))
	router.HandlerFunc("GET", "/logout", s.logout)
	if s.provider != nil {
		router.HandlerFunc("GET", "/auth/google", s.beginFederated)
		router.HandlerFunc("GET", "/auth/google/secrets", s.completeFederated)
	}
	router.HandlerFunc("GET", "/healthz", s.health)
	router.Handler("GET", "/css/*filepath", staticFiles())
	return router
}

// FederationEnabled reports if the google routes are served.
func (s *Server) FederationEnabled() bool {
	return s.provider != nil
}
