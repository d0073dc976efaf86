package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type (
	// SQLiteStore keeps the users collection in a single sqlite table.
	SQLiteStore struct {
		db *sql.DB
	}

	scanner interface {
		Scan(dest ...interface{}) error
	}
)

const userColumns = `user_id, username, hash, salt, external_id, secret`

func openUserDatabase(ctx context.Context, file string) (*sql.DB, error) {
	if dir := filepath.Dir(file); dir != "." {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("unable to create directory %v to store users, cause %w", dir, err)
		}
	}
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&mode=rwc", file)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping user database %v, cause %w", file, err)
	}
	return conn, nil
}

// OpenSQLite opens (or creates) the sqlite file and makes sure the users
// table exists.
func OpenSQLite(ctx context.Context, file string) (*SQLiteStore, error) {
	conn, err := openUserDatabase(ctx, file)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: conn}
	err = s.init(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to init user database %v, cause %w", file, err)
	}
	return s, nil
}

func (s *SQLiteStore) FindByUsername(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users
	where username_hash64 = ? and username = ?
	order by seq asc limit 1`, usernameHash(name), name)
	return s.scanOne(row, "username", name)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where user_id = ?`, id)
	return s.scanOne(row, "id", id)
}

func (s *SQLiteStore) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users
	where external_id = ?
	order by seq asc limit 1`, externalID)
	return s.scanOne(row, "external id", externalID)
}

func (s *SQLiteStore) Create(ctx context.Context, fields User) (*User, error) {
	u := fields
	u.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `insert into users(user_id, username, username_hash64, hash, salt, external_id, secret)
	values (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, usernameHash(u.Username), u.Hash, u.Salt, u.ExternalID, u.Secret)
	if err != nil {
		return nil, fmt.Errorf("unable to create user %v, cause %w", u.Username, err)
	}
	return &u, nil
}

func (s *SQLiteStore) Save(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `update users set
		username = ?, username_hash64 = ?, hash = ?, salt = ?, external_id = ?, secret = ?
	where user_id = ?`,
		u.Username, usernameHash(u.Username), u.Hash, u.Salt, u.ExternalID, u.Secret, u.ID)
	if err != nil {
		return fmt.Errorf("unable to save user %v, cause %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to save user %v, cause %w", u.ID, err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FindAllWithSecret(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users
	where secret is not null
	order by seq asc`)
	if err != nil {
		return nil, fmt.Errorf("unable to list secrets, cause %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to list secrets, cause %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to list secrets, cause %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) scanOne(row *sql.Row, field, value string) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to lookup user by %v %v, cause %w", field, value, err)
	}
	return u, nil
}

func scanUser(row scanner) (*User, error) {
	var u User
	var hash, salt, externalID, secret sql.NullString
	err := row.Scan(&u.ID, &u.Username, &hash, &salt, &externalID, &secret)
	if err != nil {
		return nil, err
	}
	u.Hash = nullable(hash)
	u.Salt = nullable(salt)
	u.ExternalID = nullable(externalID)
	u.Secret = nullable(secret)
	return &u, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func usernameHash(name string) int64 {
	return int64(xxhash.Sum64String(name))
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, cmd := range []string{
		// seq keeps insertion order, which is the order the listing uses
		`create table if not exists users(
			seq integer primary key autoincrement,
			user_id text not null unique,
			username text not null,
			username_hash64 integer not null,
			hash text,
			salt text,
			external_id text,
			secret text
		)`,
		`create index if not exists idx_users_username_hash64
			on users(username_hash64)
		`,
		`create index if not exists idx_users_external_id
			on users(external_id)
		`,
	} {
		_, err := s.db.ExecContext(ctx, cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
