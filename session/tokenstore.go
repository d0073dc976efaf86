package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/redis/go-redis/v9"
)

type (
	// TokenStore is the server side session storage, keyed by the token
	// sent to the browser.
	TokenStore interface {
		Save(ctx context.Context, token string, payload []byte) error
		// Lookup returns found=false when the token is unknown or expired.
		Lookup(ctx context.Context, token string) (payload []byte, found bool, err error)
		Delete(ctx context.Context, token string) error
		Close() error
	}

	memStore struct {
		cache *bigcache.BigCache
		ttl   time.Duration
		now   func() time.Time
	}

	redisStore struct {
		client *redis.Client
		prefix string
		ttl    time.Duration
	}
)

const (
	redisKeyPrefix = "secrets:session:"

	deadlineSize = 8
)

// InMemoryTokenStore keeps sessions in process memory, they are lost when
// the process restarts or when the entry is evicted.
//
// bigcache only drops expired entries on its cleanup pass, so every entry
// carries its own deadline and Lookup ignores the ones past it.
func InMemoryTokenStore(ctx context.Context, ttl time.Duration) (TokenStore, error) {
	cache, err := bigcache.New(ctx, memConfig(ctx, ttl))
	if err != nil {
		return nil, fmt.Errorf("unable to create in-memory session store, cause %w", err)
	}
	return &memStore{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

func memConfig(ctx context.Context, ttl time.Duration) bigcache.Config {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	if ttl < cfg.CleanWindow {
		cfg.CleanWindow = ttl
	}
	logger := logutil.GetOrDefault(ctx).With().Str("component", "session.memstore").Logger()
	cfg.Logger = &logger
	return cfg
}

func (m *memStore) Save(ctx context.Context, token string, payload []byte) error {
	entry := make([]byte, deadlineSize+len(payload))
	binary.BigEndian.PutUint64(entry, uint64(m.now().Add(m.ttl).UnixNano()))
	copy(entry[deadlineSize:], payload)
	return m.cache.Set(token, entry)
}

func (m *memStore) Lookup(ctx context.Context, token string) ([]byte, bool, error) {
	entry, err := m.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	if len(entry) <= deadlineSize {
		return nil, false, nil
	}
	deadline := time.Unix(0, int64(binary.BigEndian.Uint64(entry)))
	if !m.now().Before(deadline) {
		m.cache.Delete(token)
		return nil, false, nil
	}
	return entry[deadlineSize:], true, nil
}

func (m *memStore) Delete(ctx context.Context, token string) error {
	err := m.cache.Delete(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (m *memStore) Close() error {
	return m.cache.Close()
}

// RedisTokenStore keeps sessions in redis, each one expiring after ttl.
func RedisTokenStore(client *redis.Client, ttl time.Duration) TokenStore {
	return &redisStore{
		client: client,
		prefix: redisKeyPrefix,
		ttl:    ttl,
	}
}

// OpenRedisTokenStore parses a redis:// url and checks the server is
// reachable.
func OpenRedisTokenStore(ctx context.Context, url string, ttl time.Duration) (TokenStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis url, cause %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis, cause %w", err)
	}
	return RedisTokenStore(client, ttl), nil
}

func (r *redisStore) Save(ctx context.Context, token string, payload []byte) error {
	return r.client.Set(ctx, r.prefix+token, payload, r.ttl).Err()
}

func (r *redisStore) Lookup(ctx context.Context, token string) ([]byte, bool, error) {
	buf, err := r.client.Get(ctx, r.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func (r *redisStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.prefix+token).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

// OpenTokenStore returns the in-memory store for "memory" (or an empty
// kind) and a redis store for redis:// and rediss:// urls.
func OpenTokenStore(ctx context.Context, kind string, ttl time.Duration) (TokenStore, error) {
	switch {
	case kind == "", kind == "memory":
		return InMemoryTokenStore(ctx, ttl)
	case strings.HasPrefix(kind, "redis://"), strings.HasPrefix(kind, "rediss://"):
		return OpenRedisTokenStore(ctx, kind, ttl)
	}
	return nil, fmt.Errorf("unknown session store %q, use memory or a redis:// url", kind)
}
