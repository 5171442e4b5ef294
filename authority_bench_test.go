package goAuthz

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newBenchmarkAuthority(b *testing.B) (*Authority, func()) {
	b.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	cfg.Janitor.Enabled = false
	a, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(zap.NewNop()).
		WithDefaultRoles().
		Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	if err := a.Directory().AssignRoleToUser(context.Background(), "alice", "admin"); err != nil {
		b.Fatalf("assign: %v", err)
	}

	return a, func() {
		_ = a.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func BenchmarkAuthorize(b *testing.B) {
	a, cleanup := newBenchmarkAuthority(b)
	defer cleanup()

	ctx := context.Background()
	sess, err := a.Sessions().CreateSession(ctx, "alice", nil, "")
	if err != nil {
		b.Fatalf("create session: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := a.Authorize(ctx, sess.ID, "admin.access"); !ok {
			b.Fatal("authorize denied")
		}
	}
}

func BenchmarkUserHasPermissionCached(b *testing.B) {
	a, cleanup := newBenchmarkAuthority(b)
	defer cleanup()

	ctx := context.Background()
	if !a.Directory().UserHasPermission(ctx, "alice", "user.read") {
		b.Fatal("warmup denied")
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !a.Directory().UserHasPermission(ctx, "alice", "user.read") {
			b.Fatal("denied")
		}
	}
}

func BenchmarkCreateSession(b *testing.B) {
	a, cleanup := newBenchmarkAuthority(b)
	defer cleanup()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Sessions().CreateSession(ctx, "alice", nil, ""); err != nil {
			b.Fatalf("create session: %v", err)
		}
	}
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	a, cleanup := newBenchmarkAuthority(b)
	defer cleanup()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.MetricsSnapshot()
	}
}
