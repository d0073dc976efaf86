package users

import (
	"context"
	"strings"
)

// Open picks a Store implementation based on the dsn scheme.
//
//	mongodb://host:port/db, mongodb+srv://...  MongoStore
//	sqlite:///path/to/users.db, file:users.db  SQLiteStore
//	users.db (no scheme)                       SQLiteStore
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "":
		return nil, UnsupportedDSN{DSN: dsn}
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		s, err := OpenMongo(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "file:"):
		dsn = strings.TrimPrefix(dsn, "file:")
	case strings.Contains(dsn, "://"):
		return nil, UnsupportedDSN{DSN: dsn}
	}
	s, err := OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}
