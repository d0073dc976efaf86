package verifier

import (
	"context"
	"errors"

	"github.com/andrebq/secrets/users"
)

type (
	// Federated trusts the subject asserted by an identity provider.
	//
	// It satisfies Verifier by reading the username argument as the
	// external subject, a password is never involved.
	Federated struct {
		store users.Store
	}
)

var (
	ErrPasswordNotAllowed = errors.New("federated accounts do not accept passwords")
)

func NewFederated(store users.Store) *Federated {
	return &Federated{store: store}
}

// FindOrCreateByExternalID returns the user linked to externalID, creating
// a password-less one when none exists yet. created reports which case
// happened.
//
// The lookup and the insert are separate operations, two concurrent first
// logins for the same subject may create two records.
func (f *Federated) FindOrCreateByExternalID(ctx context.Context, externalID string) (u *users.User, created bool, err error) {
	if externalID == "" {
		return nil, false, ErrMissingCredentials
	}
	u, err = f.store.FindByExternalID(ctx, externalID)
	if err == nil {
		return u, false, nil
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, false, err
	}
	u, err = f.store.Create(ctx, users.User{ExternalID: users.Str(externalID)})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (f *Federated) Register(ctx context.Context, externalID, password string) (*users.User, error) {
	if password != "" {
		return nil, ErrPasswordNotAllowed
	}
	u, created, err := f.FindOrCreateByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	} else if !created {
		return nil, ErrUserExists
	}
	return u, nil
}

func (f *Federated) Authenticate(ctx context.Context, externalID, password string) (*users.User, error) {
	if password != "" {
		return nil, ErrPasswordNotAllowed
	}
	if externalID == "" {
		return nil, ErrMissingCredentials
	}
	return f.store.FindByExternalID(ctx, externalID)
}
