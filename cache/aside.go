package cache

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the authoritative value for a key.
type Loader[V any] func(ctx context.Context) (V, error)

// Aside is a cache-aside decorator: reads are served from a local [Expiring] map and
// fall through to a [Loader] on miss. Concurrent misses for the same key share one load.
//
// Invalidate is part of the write path, not an optimization: a mutation that skips it
// leaves stale decisions in place for up to one window.
type Aside[V any] struct {
	local   *Expiring[V]
	group   singleflight.Group
	observe func(hit bool)
}

// NewAside wraps local. observe, when non-nil, is told about every hit and miss.
func NewAside[V any](local *Expiring[V], observe func(hit bool)) *Aside[V] {
	return &Aside[V]{local: local, observe: observe}
}

// Get returns the cached value for key or loads, caches and returns it.
// Load errors are returned as-is and never cached. A caller whose ctx ends while
// waiting gets ctx.Err(); the load itself keeps running for the other waiters.
func (a *Aside[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	if v, ok := a.local.Get(key); ok {
		a.record(true)
		return v, nil
	}
	a.record(false)

	// Callers arriving after an invalidation must not join a load started before it.
	epoch := a.local.Epoch()
	flightKey := key + "#" + strconv.FormatUint(epoch, 10)

	// The shared load outlives any single caller; each caller stops waiting on its
	// own cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(flightKey, func() (interface{}, error) {
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		a.local.SetIfEpoch(key, v, epoch)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate evicts keys from the local tier.
func (a *Aside[V]) Invalidate(keys ...string) {
	a.local.Invalidate(keys...)
}

// Clear evicts everything from the local tier.
func (a *Aside[V]) Clear() {
	a.local.Clear()
}

// Close releases the local tier's timers.
func (a *Aside[V]) Close() {
	a.local.Close()
}

func (a *Aside[V]) record(hit bool) {
	if a.observe != nil {
		a.observe(hit)
	}
}
