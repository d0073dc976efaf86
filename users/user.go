// Package users keeps account records in a document collection.
//
// Every credential scheme supported by the application shares the same
// record, each one fills only the fields it cares about:
//
//   - bcrypt and digest accounts keep their password hash in Hash
//   - delegated (local strategy) accounts keep a derived key in Hash and
//     the random salt used to derive it in Salt
//   - federated accounts have only ExternalID, they never have a password
//
// A record with a non-nil Secret is listed publicly.
package users

import (
	"context"
)

type (
	// User is the only entity persisted by the application.
	User struct {
		ID string `json:"id"`
		// Username is the email or login typed by the user. It may be empty
		// for accounts created through a federated login.
		Username   string  `json:"username"`
		Hash       *string `json:"-"`
		Salt       *string `json:"-"`
		ExternalID *string `json:"externalId,omitempty"`
		Secret     *string `json:"secret,omitempty"`
	}

	// Store is the collection holding User records.
	//
	// Lookups return ErrNotFound when no record matches.
	Store interface {
		FindByUsername(ctx context.Context, name string) (*User, error)
		FindByID(ctx context.Context, id string) (*User, error)
		FindByExternalID(ctx context.Context, externalID string) (*User, error)
		// Create stores a new record built from fields and returns it with
		// its system assigned ID. Any ID present in fields is ignored.
		Create(ctx context.Context, fields User) (*User, error)
		// Save overwrites the record identified by u.ID.
		Save(ctx context.Context, u *User) error
		FindAllWithSecret(ctx context.Context) ([]User, error)
		Close() error
	}
)

// HasPassword reports if the record carries local credentials.
func (u *User) HasPassword() bool {
	return u.Hash != nil
}

// HasSecret reports if the record should appear on the public listing.
func (u *User) HasSecret() bool {
	return u.Secret != nil
}

// SetSecret replaces any previous secret.
func (u *User) SetSecret(s string) {
	u.Secret = &s
}

// Str is a small helper to fill optional fields.
func Str(s string) *string {
	return &s
}
