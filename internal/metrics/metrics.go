package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quotecast/internal/models"
	"quotecast/internal/resolver"
)

var storyPostsRecordedDesc = prometheus.NewDesc(
	"quotecast_story_posts_recorded_total",
	"Story posts stored in the history table by status",
	[]string{"status"},
	nil,
)

// StoryPostCounter reads persisted story post totals.
type StoryPostCounter interface {
	CountStoryPostsByStatus(ctx context.Context) ([]models.StoryPostCount, error)
}

// StoryPostCollector is a custom Prometheus collector that reads story post
// counts from the database on each scrape.
type StoryPostCollector struct {
	store StoryPostCounter
}

// Describe sends the metric descriptor to the channel.
func (c *StoryPostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storyPostsRecordedDesc
}

// Collect queries the database for post totals and emits them as counters.
func (c *StoryPostCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.store.CountStoryPostsByStatus(ctx)
	if err != nil {
		slog.Error("failed to collect story post metrics", "error", err)
		return
	}
	for _, sc := range counts {
		ch <- prometheus.MustNewConstMetric(
			storyPostsRecordedDesc,
			prometheus.CounterValue,
			float64(sc.Count),
			sc.Status,
		)
	}
}

// Metrics holds the in-process counters.
type Metrics struct {
	resolves       *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	feedRefreshes  *prometheus.CounterVec
	feedItems      prometheus.Gauge
	storyPosts     *prometheus.CounterVec
}

// New registers all collectors on reg. store may be nil when story history
// is disabled.
func New(reg prometheus.Registerer, store StoryPostCounter) *Metrics {
	m := &Metrics{
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotecast_resolves_total",
			Help: "Resolved records by source and provenance",
		}, []string{"source", "provenance"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotecast_upstream_errors_total",
			Help: "Failed upstream calls by source and error class",
		}, []string{"source", "class"}),
		feedRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotecast_feed_refreshes_total",
			Help: "Feed cache refresh attempts by outcome",
		}, []string{"outcome"}),
		feedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotecast_feed_items",
			Help: "Items in the feed cache after the last successful refresh",
		}),
		storyPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotecast_story_posts_total",
			Help: "Story publish attempts since start by status",
		}, []string{"status"}),
	}

	reg.MustRegister(m.resolves, m.upstreamErrors, m.feedRefreshes, m.feedItems, m.storyPosts)
	if store != nil {
		reg.MustRegister(&StoryPostCollector{store: store})
	}
	return m
}

// ResolveObserver returns a resolver observer labelled with source.
func (m *Metrics) ResolveObserver(source string) resolver.Observer {
	return func(p resolver.Provenance, class error) {
		if p != "" {
			m.resolves.WithLabelValues(source, string(p)).Inc()
		}
		if class != nil {
			m.upstreamErrors.WithLabelValues(source, class.Error()).Inc()
		}
	}
}

// ObserveFeedRefresh records a feed cache refresh attempt.
func (m *Metrics) ObserveFeedRefresh(items int, err error) {
	if err != nil {
		m.feedRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.feedRefreshes.WithLabelValues("ok").Inc()
	m.feedItems.Set(float64(items))
}

// RecordStoryPost counts a publish attempt.
func (m *Metrics) RecordStoryPost(status string) {
	m.storyPosts.WithLabelValues(status).Inc()
}
