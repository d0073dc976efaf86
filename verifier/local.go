package verifier

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/andrebq/secrets/users"
	"golang.org/x/crypto/argon2"
)

type (
	// Local is the username/password strategy of the delegated variant.
	//
	// How the password is stored is private to this type: callers only
	// see Register and Authenticate. Each account gets its own random salt,
	// the password is stretched with argon2id and only the derived key is
	// kept.
	Local struct {
		store   users.Store
		entropy io.Reader
	}
)

const (
	saltSize = 32
	keySize  = 32

	// 7 passes over 10 MB should be a good replacement
	// for 1 pass over 64 MB of ram.
	argonTime    = 7
	argonMemory  = 10 * 1024
	argonThreads = 2
)

// NewLocal returns a local strategy bound to store. Salts are read from
// entropy, crypto/rand is used when it is nil.
func NewLocal(store users.Store, entropy io.Reader) *Local {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Local{store: store, entropy: entropy}
}

func (l *Local) Register(ctx context.Context, username, password string) (*users.User, error) {
	if err := requireCredentials(username, password); err != nil {
		return nil, err
	}
	_, err := l.store.FindByUsername(ctx, username)
	if err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(l.entropy, salt); err != nil {
		return nil, fmt.Errorf("unable to generate salt, cause %w", err)
	}
	return l.store.Create(ctx, users.User{
		Username: username,
		Hash:     users.Str(hex.EncodeToString(deriveKey(password, salt))),
		Salt:     users.Str(hex.EncodeToString(salt)),
	})
}

func (l *Local) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	u, err := l.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u.Hash == nil || u.Salt == nil {
		return nil, ErrInvalidCredentials
	}
	salt, err := hex.DecodeString(*u.Salt)
	if err != nil {
		return nil, fmt.Errorf("unable to decode salt of %v, cause %w", username, err)
	}
	expected, err := hex.DecodeString(*u.Hash)
	if err != nil {
		return nil, fmt.Errorf("unable to decode hash of %v, cause %w", username, err)
	}
	if subtle.ConstantTimeCompare(expected, deriveKey(password, salt)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keySize)
}
