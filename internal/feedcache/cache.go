// Package feedcache holds a list of feed items in memory, refreshes the
// whole list when it goes stale, and serves uniformly random items from it.
package feedcache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a fetched list is served before it is reloaded.
	DefaultTTL = time.Hour
	// RefreshTimeout bounds one shared refresh.
	RefreshTimeout = 2 * time.Minute
)

// FetchFunc loads the complete item list from the source.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Options configures a Cache.
type Options struct {
	TTL    time.Duration
	Clock  quartz.Clock
	Logger *slog.Logger
	// OnRefresh is called after every refresh attempt.
	OnRefresh func(items int, err error)
	// Intn picks an index in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// Snapshot describes the cache contents.
type Snapshot struct {
	Items       int        `json:"items_count"`
	LastUpdate  *time.Time `json:"last_feed_update"`
	LastAttempt *time.Time `json:"last_refresh_attempt,omitempty"`
}

// Cache is the feed-backed variant of the resolver: no debounce tier, a
// fixed TTL and random selection over a list.
type Cache[T any] struct {
	fetch     FetchFunc[T]
	ttl       time.Duration
	clock     quartz.Clock
	logger    *slog.Logger
	onRefresh func(int, error)
	intn      func(n int) int

	group singleflight.Group

	mu          sync.RWMutex
	items       []T
	updatedAt   time.Time
	attemptedAt time.Time
}

// New creates an empty Cache. Nothing is fetched until the first draw.
func New[T any](fetch FetchFunc[T], opts Options) *Cache[T] {
	c := &Cache[T]{
		fetch:     fetch,
		ttl:       opts.TTL,
		clock:     opts.Clock,
		logger:    opts.Logger,
		onRefresh: opts.OnRefresh,
		intn:      opts.Intn,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.clock == nil {
		c.clock = quartz.NewReal()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.onRefresh == nil {
		c.onRefresh = func(int, error) {}
	}
	if c.intn == nil {
		c.intn = rand.IntN
	}
	return c
}

// Random returns a uniformly random item, reloading the list first when it
// is empty or older than the TTL. Draws are with replacement. ok is false
// only when there is nothing to draw from.
func (c *Cache[T]) Random(ctx context.Context) (item T, ok bool) {
	if c.stale() {
		// Errors are logged in Refresh; a failed refresh keeps the old list.
		_ = c.Refresh(ctx)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) == 0 {
		return item, false
	}
	return c.items[c.intn(len(c.items))], true
}

// Refresh reloads the whole list. Concurrent refreshes share one fetch that
// is not tied to any single caller's context. On failure the previous list
// is kept.
func (c *Cache[T]) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()

		now := c.clock.Now()
		c.mu.Lock()
		c.attemptedAt = now
		c.mu.Unlock()

		items, err := c.fetch(fctx)
		if err != nil {
			c.logger.Error("feed refresh failed", "error", err)
			c.onRefresh(0, err)
			return nil, err
		}

		c.mu.Lock()
		c.items = items
		c.updatedAt = c.clock.Now()
		c.mu.Unlock()

		c.logger.Info("feed refreshed", "items", len(items))
		c.onRefresh(len(items), nil)
		return nil, nil
	})
	return err
}

// Items returns a copy of the cached list without refreshing it.
func (c *Cache[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// Snapshot reports the item count and refresh times.
func (c *Cache[T]) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{Items: len(c.items)}
	if !c.updatedAt.IsZero() {
		t := c.updatedAt
		s.LastUpdate = &t
	}
	if !c.attemptedAt.IsZero() {
		t := c.attemptedAt
		s.LastAttempt = &t
	}
	return s
}

func (c *Cache[T]) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items) == 0 || c.clock.Since(c.updatedAt) >= c.ttl
}
