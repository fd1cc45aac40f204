// Package cache is a short-lived key/value cache with tag invalidation.
//
// Entries expire after their TTL. Invalidate drops every entry tagged with any
// of the given tags immediately, so a write path can end stale reads before the
// TTL runs out. Every Invalidate also bumps the version of its tags; a reader that
// stamps its tags before reading the source and stores with SetFresh never caches
// a value an invalidation has overtaken.
package cache

import (
	"context"
	"time"
)

// Stamp holds tag versions as they were when Stamp was called.
type Stamp map[string]int64

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Invalidate(ctx context.Context, tags ...string) error
	Stamp(ctx context.Context, tags ...string) (Stamp, error)
	// SetFresh stores like Set unless a stamped tag was invalidated since the stamp
	// was taken. It reports whether the value was stored.
	SetFresh(ctx context.Context, key string, value []byte, ttl time.Duration, stamp Stamp, tags ...string) (bool, error)
}
