package users

import (
	"errors"
	"fmt"
)

type (
	UnsupportedDSN struct {
		DSN string
	}

	InvalidID struct {
		ID string
	}
)

var (
	ErrNotFound = errors.New("user not found")
)

func (u UnsupportedDSN) Error() string {
	return fmt.Sprintf("unable to pick a user store for %q, use mongodb://, sqlite:// or a file path", u.DSN)
}

func (i InvalidID) Error() string {
	return fmt.Sprintf("user id %q is not valid for this store", i.ID)
}

func (i InvalidID) Is(target error) bool {
	return target == ErrNotFound
}
