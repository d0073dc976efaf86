package verifier

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"

	"github.com/andrebq/secrets/users"
)

type (
	// Digest stores an unsalted md5 digest of the password.
	//
	// Equal passwords always produce equal digests, which makes the stored
	// values open to precomputed tables. It exists to keep accounts created
	// by older deployments working, prefer Bcrypt or Local for anything new.
	Digest struct {
		store users.Store
	}
)

func NewDigest(store users.Store) *Digest {
	return &Digest{store: store}
}

// Sum returns the hex encoded digest stored for password.
func Sum(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (d *Digest) Register(ctx context.Context, username, password string) (*users.User, error) {
	if err := requireCredentials(username, password); err != nil {
		return nil, err
	}
	return d.store.Create(ctx, users.User{
		Username: username,
		Hash:     users.Str(Sum(password)),
	})
}

func (d *Digest) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	u, err := d.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(*u.Hash), []byte(Sum(password))) != 1 {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
