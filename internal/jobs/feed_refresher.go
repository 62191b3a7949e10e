package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/quartz"
)

// Refresher reloads a cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// FeedRefresher keeps the feed cache warm in the background so scheduled
// runs rarely wait on a feed download.
type FeedRefresher struct {
	cache    Refresher
	interval time.Duration
	clock    quartz.Clock
	logger   *slog.Logger
}

// NewFeedRefresher creates a new feed refresher.
func NewFeedRefresher(cache Refresher, interval time.Duration, clock quartz.Clock, logger *slog.Logger) *FeedRefresher {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedRefresher{cache: cache, interval: interval, clock: clock, logger: logger}
}

// Start refreshes immediately, then on every interval until ctx is done.
func (r *FeedRefresher) Start(ctx context.Context) {
	r.logger.Info("feed refresher started", "interval", r.interval)

	// Run immediately on start
	r.refresh(ctx)

	_ = r.clock.TickerFunc(ctx, r.interval, func() error {
		r.refresh(ctx)
		return nil
	}, "feed_refresher").Wait()

	r.logger.Info("feed refresher stopped")
}

func (r *FeedRefresher) refresh(ctx context.Context) {
	// Failures are logged by the cache and the previous items stay in place.
	_ = r.cache.Refresh(ctx)
}
