package verifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andrebq/secrets/internal/testutil"
	"github.com/andrebq/secrets/users"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLogin(t *testing.T) {
	for _, v := range []Variant{VariantBcrypt, VariantDigest, VariantDelegated} {
		t.Run(string(v), func(t *testing.T) {
			ctx := context.Background()
			store, cleanup := testutil.AcquireStore(ctx, t, string(v))
			defer cleanup()
			verifier, err := New(v, store, 0)
			if err != nil {
				t.Fatal(err)
			}

			registered, err := verifier.Register(ctx, "bob@example.com", "qwerty")
			if err != nil {
				t.Fatal(err)
			}
			authenticated, err := verifier.Authenticate(ctx, "bob@example.com", "qwerty")
			if err != nil {
				t.Fatal(err)
			} else if authenticated.ID != registered.ID {
				t.Fatalf("Login should find user %v got %v", registered.ID, authenticated.ID)
			}

			_, err = verifier.Authenticate(ctx, "bob@example.com", "wrong-password")
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Wrong password should fail with ErrInvalidCredentials, got %v", err)
			}

			_, err = verifier.Authenticate(ctx, "alice@example.com", "qwerty")
			if !errors.Is(err, users.ErrNotFound) {
				t.Fatalf("Unknown user should fail with ErrNotFound, got %v", err)
			}

			_, err = verifier.Register(ctx, "", "qwerty")
			if !errors.Is(err, ErrMissingCredentials) {
				t.Fatalf("Empty username should be rejected, got %v", err)
			}
		})
	}
}

func TestBcryptSaltIsUnique(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "bcrypt")
	defer cleanup()
	b := NewBcrypt(store, 0)
	require.Equal(t, MinimumCost, b.Cost, "cost should be clamped to the minimum")

	first, err := b.Register(ctx, "ana", "same-password")
	require.NoError(t, err)
	second, err := b.Register(ctx, "bob", "same-password")
	require.NoError(t, err)

	require.NotEqual(t, *first.Hash, *second.Hash, "salted hashes must differ")
	for _, h := range []string{*first.Hash, *second.Hash} {
		require.Len(t, h, 60)
		require.True(t, strings.HasPrefix(h, "$2a$10$"), "unexpected hash format %v", h)
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "digest")
	defer cleanup()
	d := NewDigest(store)

	first, err := d.Register(ctx, "ana", "same-password")
	require.NoError(t, err)
	second, err := d.Register(ctx, "bob", "same-password")
	require.NoError(t, err)

	require.Equal(t, []byte(*first.Hash), []byte(*second.Hash))
	require.Equal(t, "5f4dcc3b5aa765d61d8327deb882cf99", Sum("password"))
}

func TestLocalRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "local")
	defer cleanup()
	l := NewLocal(store, nil)

	u, err := l.Register(ctx, "bob", "qwerty")
	require.NoError(t, err)
	require.NotNil(t, u.Salt)
	require.Len(t, *u.Salt, saltSize*2)
	require.Len(t, *u.Hash, keySize*2)

	_, err = l.Register(ctx, "bob", "another")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestLocalRejectsFederatedAccount(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "local")
	defer cleanup()
	_, err := store.Create(ctx, users.User{Username: "bob", ExternalID: users.Str("g-1")})
	require.NoError(t, err)

	_, err = NewLocal(store, nil).Authenticate(ctx, "bob", "anything")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFederatedFindOrCreate(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "federated")
	defer cleanup()
	f := NewFederated(store)

	first, created, err := f.FindOrCreateByExternalID(ctx, "108273649")
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, first.HasPassword())
	require.Equal(t, "108273649", *first.ExternalID)

	second, created, err := f.FindOrCreateByExternalID(ctx, "108273649")
	require.NoError(t, err)
	require.False(t, created, "second login must reuse the record")
	require.Equal(t, first.ID, second.ID)

	other, created, err := f.FindOrCreateByExternalID(ctx, "999")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, other.ID)

	u, err := f.Authenticate(ctx, "108273649", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, u.ID)

	_, err = f.Authenticate(ctx, "108273649", "password")
	require.ErrorIs(t, err, ErrPasswordNotAllowed)

	_, err = f.Register(ctx, "108273649", "")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestParseVariant(t *testing.T) {
	type testCase struct {
		name    string
		variant Variant
	}
	for _, tc := range []testCase{
		{"bcrypt", VariantBcrypt},
		{"A", VariantBcrypt},
		{"digest", VariantDigest},
		{"md5", VariantDigest},
		{" Delegated ", VariantDelegated},
		{"c", VariantDelegated},
	} {
		actual, err := ParseVariant(tc.name)
		if err != nil {
			t.Fatal(err)
		} else if actual != tc.variant {
			t.Errorf("ParseVariant(%q) should return %v got %v", tc.name, tc.variant, actual)
		}
	}
	_, err := ParseVariant("oauth")
	if !errors.As(err, &UnknownVariant{}) {
		t.Fatalf("Unknown variant should fail, got %v", err)
	}
}
