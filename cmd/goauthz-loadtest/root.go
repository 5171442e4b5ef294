package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath      string
	redisAddr       string
	users           int
	sessionsPerUser int
	concurrency     int
	ops             int
	permission      string
	role            string
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "goauthz-loadtest",
		Short: "Load test session and RBAC operations",
		Long: `goauthz-loadtest seeds users and sessions, then measures three phases:

  authorize   resolve a random session and check a permission
  lookup      read a random session without the permission check
  logout      destroy all sessions of every seeded user

Without --redis-addr (or REDIS_ADDR) an in-process miniredis is used.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file loaded with goAuthz.LoadConfig")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	f.IntVar(&opts.users, "users", 1000, "number of users to seed")
	f.IntVar(&opts.sessionsPerUser, "sessions-per-user", 3, "sessions created per user")
	f.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 100000, "operations per phase")
	f.StringVar(&opts.permission, "permission", "user.read", "permission checked in the authorize phase")
	f.StringVar(&opts.role, "role", "user", "role assigned to every seeded user")

	return cmd
}

func run(ctx context.Context, opts options) error {
	if opts.users <= 0 || opts.sessionsPerUser <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("users, sessions-per-user, concurrency, and ops must be > 0")
	}

	cfg := goAuthz.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := goAuthz.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Janitor.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true
	if cfg.Session.MaxSessionsPerUser != 0 && cfg.Session.MaxSessionsPerUser < opts.sessionsPerUser {
		fmt.Printf("note: sessions-per-user %d exceeds cap %d, evictions will occur\n",
			opts.sessionsPerUser, cfg.Session.MaxSessionsPerUser)
	}

	client, cleanup, err := dial(opts.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	authority, err := goAuthz.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(zap.NewNop()).
		WithDefaultRoles().
		BuildContext(ctx)
	if err != nil {
		return err
	}
	defer authority.Close()

	userIDs, sessionIDs, err := seed(ctx, authority, opts)
	if err != nil {
		return err
	}

	authorizeStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		sid := sessionIDs[r.Intn(len(sessionIDs))]
		if _, ok := authority.Authorize(ctx, sid, opts.permission); !ok {
			return errDenied
		}
		return nil
	})

	lookupStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		sid := sessionIDs[r.Intn(len(sessionIDs))]
		_, err := authority.Sessions().Lookup(ctx, sid)
		return err
	})

	logoutStats := runPhase(len(userIDs), opts.concurrency, func(_ *rand.Rand, i int) error {
		_, err := authority.Logout(ctx, userIDs[i], "")
		return err
	})

	fmt.Println("---- results ----")
	printStats("authorize", authorizeStats)
	printStats("lookup", lookupStats)
	printStats("logout", logoutStats)

	snapshot := authority.MetricsSnapshot()
	fmt.Printf("allowed=%d denied=%d degraded=%d cache_hit=%d cache_miss=%d evicted=%d audit_dropped=%d\n",
		snapshot.Counters[goAuthz.MetricAuthzAllowed],
		snapshot.Counters[goAuthz.MetricAuthzDenied],
		snapshot.Counters[goAuthz.MetricAuthzDegraded],
		snapshot.Counters[goAuthz.MetricPermissionCacheHit],
		snapshot.Counters[goAuthz.MetricPermissionCacheMiss],
		snapshot.Counters[goAuthz.MetricSessionEvicted],
		authority.AuditDropped(),
	)
	return nil
}

var errDenied = errors.New("denied")

func dial(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func seed(ctx context.Context, authority *goAuthz.Authority, opts options) ([]string, []string, error) {
	fmt.Printf("seeding %d users x %d sessions...\n", opts.users, opts.sessionsPerUser)
	start := time.Now()

	userIDs := make([]string, 0, opts.users)
	sessionIDs := make([]string, 0, opts.users*opts.sessionsPerUser)
	for u := 0; u < opts.users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		if err := authority.Directory().AssignRoleToUser(ctx, userID, opts.role); err != nil {
			return nil, nil, fmt.Errorf("assign %s to %s: %w", opts.role, userID, err)
		}
		userIDs = append(userIDs, userID)

		for s := 0; s < opts.sessionsPerUser; s++ {
			info := &session.DeviceInfo{
				UserAgent: "goauthz-loadtest/1.0",
				IPAddress: fmt.Sprintf("10.0.%d.%d", u%256, s%256),
				Platform:  "linux",
			}
			sess, err := authority.Sessions().CreateSession(ctx, userID, info, "")
			if err != nil {
				return nil, nil, fmt.Errorf("create session for %s: %w", userID, err)
			}
			sessionIDs = append(sessionIDs, sess.ID)
		}
	}

	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return userIDs, sessionIDs, nil
}
