// Package verifier decides if a presented credential authenticates a user.
//
// Only one verifier is authoritative in a running process, they never
// combine: Bcrypt replaces Digest which is replaced by Local (plus
// Federated for logins coming from an identity provider).
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrebq/secrets/users"
)

type (
	// Verifier registers and authenticates users with a username and a
	// password.
	//
	// Authenticate returns users.ErrNotFound when no account matches the
	// username and ErrInvalidCredentials when the password is wrong.
	Verifier interface {
		Register(ctx context.Context, username, password string) (*users.User, error)
		Authenticate(ctx context.Context, username, password string) (*users.User, error)
	}

	// Variant names one of the supported credential schemes.
	Variant string

	UnknownVariant struct {
		Name string
	}
)

const (
	VariantBcrypt    = Variant("bcrypt")
	VariantDigest    = Variant("digest")
	VariantDelegated = Variant("delegated")
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUserExists         = errors.New("a user with the given username is already registered")
)

func (u UnknownVariant) Error() string {
	return fmt.Sprintf("unknown variant %q, use one of %v, %v or %v", u.Name, VariantBcrypt, VariantDigest, VariantDelegated)
}

// ParseVariant accepts the variant names (case insensitive) and the
// single letter aliases a, b and c.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bcrypt", "a":
		return VariantBcrypt, nil
	case "digest", "md5", "b":
		return VariantDigest, nil
	case "delegated", "local", "c":
		return VariantDelegated, nil
	}
	return "", UnknownVariant{Name: name}
}

// Delegated reports if the variant delegates to the local strategy and
// supports federated logins.
func (v Variant) Delegated() bool {
	return v == VariantDelegated
}

// New returns the local verifier used by the given variant. cost is only
// used by the bcrypt variant.
func New(v Variant, store users.Store, cost int) (Verifier, error) {
	switch v {
	case VariantBcrypt:
		return NewBcrypt(store, cost), nil
	case VariantDigest:
		return NewDigest(store), nil
	case VariantDelegated:
		return NewLocal(store, nil), nil
	}
	return nil, UnknownVariant{Name: string(v)}
}

func requireCredentials(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	return nil
}
