// Package redis shares the recently-fetched filter across runs through Redis keys with a TTL.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/wikicrawler/internal/hash/sha256"
)

const keyPrefix = "wikicrawler:seen:"

// client is the subset of *goredis.Client the tracker uses.
type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Tracker marks keys with SET NX so concurrent workers and parallel runs agree on one winner.
type Tracker struct {
	client client
	ttl    time.Duration
}

// New dials addr (host:port or a redis:// URL) and verifies the connection.
func New(ctx context.Context, addr string, ttl time.Duration) (*Tracker, *goredis.Client, error) {
	opts, err := goredis.ParseURL(addr)
	if err != nil {
		opts = &goredis.Options{Addr: addr}
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewWithClient(rdb, ttl), rdb, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(c client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{client: c, ttl: ttl}
}

// MarkIfNew reports whether key was absent; the key expires after the configured TTL.
func (t *Tracker) MarkIfNew(ctx context.Context, key string) (bool, error) {
	ok, err := t.client.SetNX(ctx, Key(key), "1", t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Forget deletes the mark for key.
func (t *Tracker) Forget(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, Key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Key hashes the raw key so long or non-ASCII titles map to fixed-size Redis keys.
func Key(raw string) string {
	return keyPrefix + sha256.Fingerprint([]byte(raw))
}
