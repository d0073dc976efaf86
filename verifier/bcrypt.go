package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrebq/secrets/users"
	"golang.org/x/crypto/bcrypt"
)

type (
	// Bcrypt stores an adaptive salted hash of the password. The salt is
	// embedded in the hash output.
	Bcrypt struct {
		store users.Store
		Cost  int
	}
)

const (
	// MinimumCost is the lowest work factor accepted for new hashes.
	MinimumCost = 10
)

// NewBcrypt clamps cost to [MinimumCost, bcrypt.MaxCost].
func NewBcrypt(store users.Store, cost int) *Bcrypt {
	if cost < MinimumCost {
		cost = MinimumCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Bcrypt{store: store, Cost: cost}
}

func (b *Bcrypt) Register(ctx context.Context, username, password string) (*users.User, error) {
	if err := requireCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return nil, fmt.Errorf("unable to hash password, cause %w", err)
	}
	return b.store.Create(ctx, users.User{
		Username: username,
		Hash:     users.Str(string(hash)),
	})
}

func (b *Bcrypt) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	u, err := b.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	err = bcrypt.CompareHashAndPassword([]byte(*u.Hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("unable to verify password of %v, cause %w", username, err)
	}
	return u, nil
}
