// Package evalcache remembers best moves per position so repeated positions
// (new games replaying an opening, engine self-play) skip the search.
package evalcache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Store.Get when nothing is stored under a key.
var ErrCacheMiss = errors.New("evalcache: miss")

// Store is the byte-level backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

// RedisStore keeps entries in Redis with a per-key TTL.
type RedisStore struct{ rdb *redis.Client }

// NewRedisStore dials REDIS_URL style addresses and pings once.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return raw, err
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad db index %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

type memEntry struct {
	val     []byte
	expires time.Time
}

// MemoryStore is the in-process fallback used when no Redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.items, key)
		return nil, ErrCacheMiss
	}
	return e.val, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.items[key] = e
	return nil
}

func (s *MemoryStore) Close() error { return nil }
