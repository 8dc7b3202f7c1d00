// Package allowlist keeps a lazily refreshed copy of the CIDR blocks GitHub
// sends webhooks from and answers membership queries against it.
//
// There is no background refresh. A query that finds the data older than the
// TTL triggers a fetch; concurrent queries share that single fetch. A failed
// refresh fails the query: stale ranges are never used to admit a request.
package allowlist

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Default values
const (
	DefaultTTL          = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

type snapshot struct {
	prefixes  []netip.Prefix
	fetchedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	group singleflight.Group

	mu   sync.RWMutex
	snap *snapshot
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long fetched ranges are used before a refresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds a single upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// NewCache creates an empty cache backed by fetcher.
func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:      fetcher,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsTrustedOrigin parses addr and reports whether it lies in a published
// block. An address that cannot be parsed is not trusted.
func (c *Cache) IsTrustedOrigin(ctx context.Context, addr string) (bool, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false, nil
	}
	return c.Contains(ctx, ip)
}

// Contains reports whether addr lies in a published block, refreshing the
// ranges first when they are stale. IPv4-mapped IPv6 addresses are compared
// in their IPv4 form.
func (c *Cache) Contains(ctx context.Context, addr netip.Addr) (bool, error) {
	prefixes, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// Refresh fetches the ranges now, regardless of age.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// Snapshot returns the last successfully fetched ranges and when they were
// fetched, even when they are past the TTL. The zero time means nothing has
// been fetched yet.
func (c *Cache) Snapshot() ([]netip.Prefix, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil, time.Time{}
	}
	out := make([]netip.Prefix, len(c.snap.prefixes))
	copy(out, c.snap.prefixes)
	return out, c.snap.fetchedAt
}

func (c *Cache) current(ctx context.Context) ([]netip.Prefix, error) {
	now := c.now()

	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	if snap != nil && now.Sub(snap.fetchedAt) <= c.ttl {
		return snap.prefixes, nil
	}

	prefixes, err := c.refresh(ctx)
	if err != nil {
		if snap != nil {
			c.logger.Warn("allowlist refresh failed, ranges are stale",
				"error", err,
				"age", now.Sub(snap.fetchedAt).String(),
			)
		}
		return nil, err
	}
	return prefixes, nil
}

func (c *Cache) refresh(ctx context.Context) ([]netip.Prefix, error) {
	v, err, _ := c.group.Do("meta", func() (any, error) {
		// The fetch outlives a cancelled caller so the other waiters still get a result.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		prefixes, err := c.fetcher.Fetch(fctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.snap = &snapshot{prefixes: prefixes, fetchedAt: c.now()}
		c.mu.Unlock()

		c.logger.Debug("allowlist refreshed", "blocks", len(prefixes))
		return prefixes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]netip.Prefix), nil
}
