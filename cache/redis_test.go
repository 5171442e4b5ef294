package cache

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGateway(t *testing.T) (*RedisGateway, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisGateway(rdb), mr
}

type record struct {
	ID    string   `json:"id"`
	Names []string `json:"names"`
}

func TestRedisGatewayGetSetDel(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	if err := g.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := g.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("get = %q, %v", v, err)
	}

	ok, err := g.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}

	if err := g.Del(ctx, "k", "never-existed"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, err = g.Exists(ctx, "k")
	if err != nil || ok {
		t.Fatalf("expected key gone, exists = %v, %v", ok, err)
	}
	if err := g.Del(ctx); err != nil {
		t.Fatalf("empty del: %v", err)
	}
}

func TestRedisGatewaySetWithTTL(t *testing.T) {
	g, mr := newTestGateway(t)
	ctx := context.Background()

	if err := g.Set(ctx, "short", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("short"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := g.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}

	if err := g.Set(ctx, "forever", "v", -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("forever"); ttl != 0 {
		t.Fatalf("negative ttl must mean no expiry, got %v", ttl)
	}
}

func TestRedisGatewayObjects(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	in := record{ID: "r1", Names: []string{"a", "b"}}
	if err := SetObject(ctx, g, "obj", in, 0); err != nil {
		t.Fatalf("set object: %v", err)
	}
	out, err := GetObject[record](ctx, g, "obj")
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if out.ID != in.ID || len(out.Names) != 2 {
		t.Fatalf("unexpected object %+v", out)
	}

	if err := g.Set(ctx, "bad", "{not json", 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := GetObject[record](ctx, g, "bad"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := GetObject[record](ctx, g, "nope"); !IsMiss(err) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestRedisGatewayKeysByPrefix(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	for _, k := range []string{"session:a", "session:b", "session:user:u1", "role:x"} {
		if err := g.Set(ctx, k, "1", 0); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}

	keys, err := g.Keys(ctx, "session:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	sort.Strings(keys)
	want := []string{"session:a", "session:b", "session:user:u1"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestRedisGatewaySets(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	if err := g.SAdd(ctx, "user:u1:roles", "r1", "r2", "r1"); err != nil {
		t.Fatalf("sadd: %v", err)
	}
	members, err := g.SMembers(ctx, "user:u1:roles")
	if err != nil || len(members) != 2 {
		t.Fatalf("smembers = %v, %v", members, err)
	}
	if err := g.SRem(ctx, "user:u1:roles", "r1", "missing"); err != nil {
		t.Fatalf("srem: %v", err)
	}
	members, err = g.SMembers(ctx, "user:u1:roles")
	if err != nil || len(members) != 1 || members[0] != "r2" {
		t.Fatalf("smembers after srem = %v, %v", members, err)
	}

	empty, err := g.SMembers(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("smembers on missing set = %v, %v", empty, err)
	}
}

func TestRedisGatewayUnavailable(t *testing.T) {
	g, mr := newTestGateway(t)
	ctx := context.Background()
	mr.Close()

	if _, err := g.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on get, got %v", err)
	}
	if err := g.Set(ctx, "k", "v", 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on set, got %v", err)
	}
	if _, err := g.SMembers(ctx, "s"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on smembers, got %v", err)
	}
	if _, err := g.Keys(ctx, "*"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on keys, got %v", err)
	}
	if _, err := g.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on ping, got %v", err)
	}
}

func TestNewRedisClientGivesUp(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = 1
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.DialTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisClient(ctx, cfg); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
