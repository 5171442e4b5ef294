package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 1000

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Connect attempts made by NewRedisClient before giving up.
	MaxRetries    int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DefaultRedisConfig returns the connection defaults used when no config is loaded.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      100,
		MinIdleConns:  10,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
}

// NewRedisClient dials Redis and pings it until it answers or the retry budget is spent.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("%w: connect after %d attempts: %v", ErrUnavailable, cfg.MaxRetries+1, lastErr)
}

// RedisGateway implements [Gateway] on a go-redis client.
//
//	Performance: every method is a single round trip except Keys, which pages through SCAN.
type RedisGateway struct {
	redis redis.UniversalClient
}

// NewRedisGateway wraps an existing go-redis client.
func NewRedisGateway(client redis.UniversalClient) *RedisGateway {
	return &RedisGateway{redis: client}
}

// Client returns the underlying go-redis client.
func (g *RedisGateway) Client() redis.UniversalClient {
	return g.redis
}

func (g *RedisGateway) Get(ctx context.Context, key string) (string, error) {
	v, err := g.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", unavailable(err)
	}
	return v, nil
}

func (g *RedisGateway) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := g.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *RedisGateway) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := g.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *RedisGateway) Exists(ctx context.Context, key string) (bool, error) {
	n, err := g.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Keys enumerates keys matching pattern with SCAN. It never blocks the server the way
// KEYS does, but it is still O(keyspace) and meant for admin and janitor paths.
func (g *RedisGateway) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	seen := make(map[string]struct{})

	for {
		keys, next, err := g.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable(err)
		}
		// SCAN may return a key more than once.
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

func (g *RedisGateway) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := g.redis.SAdd(ctx, key, toArgs(members)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *RedisGateway) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := g.redis.SRem(ctx, key, toArgs(members)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *RedisGateway) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := g.redis.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	return members, nil
}

// Ping returns a point-in-time availability check and latency.
func (g *RedisGateway) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := g.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}
