// Package resolver decides, per request, whether content comes from the
// upstream source, the in-memory cache, or a static fallback set.
//
// A fresh cached result is served without contacting upstream. Otherwise
// every call attempts upstream and degrades through stale cache to the
// static fallback set. Upstream errors never reach the caller while any of
// the lower tiers has data.
package resolver

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/singleflight"
)

// Provenance tells the caller which tier produced a record.
type Provenance string

const (
	ProvenanceUpstream   Provenance = "upstream"
	ProvenanceCache      Provenance = "cache"
	ProvenanceStaleCache Provenance = "stale_cache"
	ProvenanceLocal      Provenance = "local"
)

// Default tuning, matching the quotes service.
const (
	DefaultDebounce = 1200 * time.Millisecond
	DefaultTTL      = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// FetchFunc is a blocking call to the upstream source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// CachedResult is a payload obtained from upstream and the time it arrived.
// It is replaced wholesale on the next successful fetch.
type CachedResult[T any] struct {
	Payload   T
	FetchedAt time.Time
}

// State is the Resolver's mutable state. LastCallAt moves on every upstream
// attempt; Last moves only on success.
type State[T any] struct {
	Last       *CachedResult[T]
	LastCallAt time.Time
}

// Result is what Resolve hands back to callers.
type Result[T any] struct {
	Payload    T
	Provenance Provenance
	// FetchedAt is zero for ProvenanceLocal.
	FetchedAt time.Time
}

// Observer is notified once per Resolve call. class is nil unless an
// upstream attempt failed; p is empty when nothing could be served.
type Observer func(p Provenance, class error)

// Options configures a Resolver. Zero values fall back to the defaults.
type Options[T any] struct {
	Debounce time.Duration
	TTL      time.Duration
	Timeout  time.Duration
	Fallback []T
	Clock    quartz.Clock
	Logger   *slog.Logger
	Observer Observer
	// Intn picks a fallback index in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// Resolver produces one content record per request.
type Resolver[T any] struct {
	fetch    FetchFunc[T]
	debounce time.Duration
	ttl      time.Duration
	timeout  time.Duration
	fallback []T
	clock    quartz.Clock
	logger   *slog.Logger
	observe  Observer
	intn     func(n int) int

	group singleflight.Group

	mu    sync.Mutex
	state State[T]
}

// New creates a Resolver over fetch.
func New[T any](fetch FetchFunc[T], opts Options[T]) *Resolver[T] {
	r := &Resolver[T]{
		fetch:    fetch,
		debounce: opts.Debounce,
		ttl:      opts.TTL,
		timeout:  opts.Timeout,
		fallback: append([]T(nil), opts.Fallback...),
		clock:    opts.Clock,
		logger:   opts.Logger,
		observe:  opts.Observer,
		intn:     opts.Intn,
	}
	if r.debounce <= 0 {
		r.debounce = DefaultDebounce
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.clock == nil {
		r.clock = quartz.NewReal()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.observe == nil {
		r.observe = func(Provenance, error) {}
	}
	if r.intn == nil {
		r.intn = rand.IntN
	}
	return r
}

// Resolve returns one record and the tier it came from. The only error it
// returns is ErrUnavailable.
func (r *Resolver[T]) Resolve(ctx context.Context) (Result[T], error) {
	now := r.clock.Now()

	r.mu.Lock()
	if res, ok := r.freshLocked(now); ok {
		if since := now.Sub(r.state.LastCallAt); since < r.debounce {
			r.logger.Debug("served cache inside debounce window", "since_last_call", since)
		}
		r.mu.Unlock()
		r.observe(res.Provenance, nil)
		return res, nil
	}
	r.state.LastCallAt = now
	r.mu.Unlock()

	cached, err := r.callUpstream(ctx)
	if err == nil {
		r.observe(ProvenanceUpstream, nil)
		return Result[T]{Payload: cached.Payload, Provenance: ProvenanceUpstream, FetchedAt: cached.FetchedAt}, nil
	}

	class := Classify(err)
	r.logger.Warn("upstream fetch failed", "class", class.Error(), "error", err)

	r.mu.Lock()
	res, uerr := r.degradeLocked()
	r.mu.Unlock()
	if uerr != nil {
		r.logger.Error("no content to serve", "error", uerr)
		r.observe("", class)
		return res, uerr
	}
	r.observe(res.Provenance, class)
	return res, nil
}

// Snapshot returns a copy of the current state.
func (r *Resolver[T]) Snapshot() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := State[T]{LastCallAt: r.state.LastCallAt}
	if r.state.Last != nil {
		last := *r.state.Last
		s.Last = &last
	}
	return s
}

// callUpstream runs fetch with the configured timeout and commits a
// successful result. Concurrent callers share a single in-flight call. A
// caller whose context ends first gives up waiting; the shared call still
// completes and its result is still cached.
func (r *Resolver[T]) callUpstream(ctx context.Context) (*CachedResult[T], error) {
	ch := r.group.DoChan("upstream", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		payload, err := r.fetch(fctx)
		if err != nil {
			return nil, err
		}

		cached := &CachedResult[T]{Payload: payload, FetchedAt: r.clock.Now()}
		r.mu.Lock()
		r.state.Last = cached
		r.mu.Unlock()
		return cached, nil
	})

	select {
	case <-ctx.Done():
		return nil, &FetchError{Class: ErrTimeout, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CachedResult[T]), nil
	}
}

func (r *Resolver[T]) freshLocked(now time.Time) (Result[T], bool) {
	last := r.state.Last
	if last == nil || now.Sub(last.FetchedAt) >= r.ttl {
		return Result[T]{}, false
	}
	return Result[T]{Payload: last.Payload, Provenance: ProvenanceCache, FetchedAt: last.FetchedAt}, true
}

// degradeLocked serves the last good result regardless of age, then a
// random static record.
func (r *Resolver[T]) degradeLocked() (Result[T], error) {
	if last := r.state.Last; last != nil {
		return Result[T]{Payload: last.Payload, Provenance: ProvenanceStaleCache, FetchedAt: last.FetchedAt}, nil
	}
	if len(r.fallback) == 0 {
		return Result[T]{}, ErrUnavailable
	}
	return Result[T]{Payload: r.fallback[r.intn(len(r.fallback))], Provenance: ProvenanceLocal}, nil
}
