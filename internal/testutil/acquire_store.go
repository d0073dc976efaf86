package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/secrets/users"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireStore returns a sqlite backed user store living in a temp
// directory, the cleanup function closes it and removes the directory.
func AcquireStore(ctx context.Context, t TestLog, name string) (*users.SQLiteStore, func()) {
	dir, err := os.MkdirTemp("", "secrets-tests")
	if err != nil {
		t.Fatal(err)
	}
	abspath := filepath.Join(dir, name, "users.db")
	store, err := users.OpenSQLite(ctx, abspath)
	if err != nil {
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close user store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// AcquirePopulatedStore is like AcquireStore but calls loader before
// handing the store to the test.
func AcquirePopulatedStore(ctx context.Context, t TestLog, name string, loader func(context.Context, users.Store) error) (*users.SQLiteStore, func()) {
	store, cleanup := AcquireStore(ctx, t, name)
	if loader != nil {
		err := loader(ctx, store)
		if err != nil {
			cleanup()
			t.Fatal(err)
		}
	}
	return store, cleanup
}
