package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("cache miss")

// ErrUnavailable marks a transient backend failure (unreachable store, timeout).
// Read paths degrade on it; security-critical write paths propagate it.
var ErrUnavailable = errors.New("cache unavailable")

// ErrCorrupt is returned when a stored value cannot be decoded.
var ErrCorrupt = errors.New("cache value corrupt")

// Gateway is the key-value contract goAuthz depends on.
//
// Implementations must be safe for concurrent use. A ttl <= 0 means the key does
// not expire. Keys takes a glob pattern such as "session:*".
type Gateway interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// GetObject reads key and decodes its JSON value into a T.
func GetObject[T any](ctx context.Context, g Gateway, key string) (T, error) {
	var out T

	raw, err := g.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return out, nil
}

// SetObject encodes value as JSON and stores it under key with the given ttl.
func SetObject(ctx context.Context, g Gateway, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return g.Set(ctx, key, string(data), ttl)
}

// IsMiss reports whether err means the key was definitely absent.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
