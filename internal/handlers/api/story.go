package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"quotecast/internal/feedcache"
	"quotecast/internal/jobs"
	"quotecast/internal/models"
)

const (
	statusNotInitialized = "not_initialized"

	feedSampleSize      = 3
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// StoryControl drives the story scheduler.
type StoryControl interface {
	Start() error
	Stop() error
	Status() jobs.SchedulerStatus
	PostNow(ctx context.Context) (*models.Story, error)
	Preview(ctx context.Context) (*models.Story, error)
}

// FeedInfo exposes the feed cache.
type FeedInfo interface {
	Refresh(ctx context.Context) error
	Items() []models.Offer
	Snapshot() feedcache.Snapshot
}

// HistoryReader lists recorded story posts.
type HistoryReader interface {
	ListRecentStoryPosts(ctx context.Context, limit int) ([]models.StoryPost, error)
}

// StoryHandler serves the story control API.
type StoryHandler struct {
	scheduler StoryControl
	feed      FeedInfo
	history   HistoryReader
	admins    []int64
	accounts  int
}

// NewStoryHandler creates a new story control handler. scheduler and feed
// are nil when no story settings file is present; history is nil when no
// database is configured.
func NewStoryHandler(scheduler StoryControl, feed FeedInfo, history HistoryReader, admins []int64, accounts int) *StoryHandler {
	return &StoryHandler{
		scheduler: scheduler,
		feed:      feed,
		history:   history,
		admins:    admins,
		accounts:  accounts,
	}
}

type storyStatus struct {
	jobs.SchedulerStatus
	Feed     *feedcache.Snapshot `json:"feed,omitempty"`
	Admins   []int64             `json:"admins"`
	Accounts int                 `json:"accounts_count"`
}

type storyPreview struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

func previewOf(s *models.Story) storyPreview {
	return storyPreview{
		ID:       s.ID.String(),
		Title:    s.Title,
		Text:     s.Text,
		ImageURL: s.ImageURL,
	}
}

// Status reports the schedule, the last run and the feed cache.
func (h *StoryHandler) Status(c fiber.Ctx) error {
	if h.scheduler == nil {
		return c.JSON(envelope(statusNotInitialized, "story poster is not configured", nil))
	}

	st := storyStatus{
		SchedulerStatus: h.scheduler.Status(),
		Admins:          h.admins,
		Accounts:        h.accounts,
	}
	if st.Admins == nil {
		st.Admins = []int64{}
	}
	if h.feed != nil {
		snap := h.feed.Snapshot()
		st.Feed = &snap
	}
	return jsonSuccess(c, "", st)
}

// Start schedules story runs.
func (h *StoryHandler) Start(c fiber.Ctx) error {
	if h.scheduler == nil {
		return h.notConfigured(c)
	}

	if err := h.scheduler.Start(); err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			return jsonWarning(c, "scheduler is already running", nil)
		}
		slog.Error("failed to start story scheduler", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return jsonSuccess(c, "scheduler started", h.scheduler.Status())
}

// Stop cancels scheduled story runs.
func (h *StoryHandler) Stop(c fiber.Ctx) error {
	if h.scheduler == nil {
		return h.notConfigured(c)
	}

	if err := h.scheduler.Stop(); err != nil {
		if errors.Is(err, jobs.ErrNotRunning) {
			return jsonWarning(c, "scheduler is already stopped", nil)
		}
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return jsonSuccess(c, "scheduler stopped", nil)
}

// Test builds a story without posting it.
func (h *StoryHandler) Test(c fiber.Ctx) error {
	if h.scheduler == nil {
		return h.notConfigured(c)
	}

	s, err := h.scheduler.Preview(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "failed to create test story: "+err.Error())
	}
	return jsonSuccess(c, "test story created", previewOf(s))
}

// Post builds and publishes a story immediately.
func (h *StoryHandler) Post(c fiber.Ctx) error {
	if h.scheduler == nil {
		return h.notConfigured(c)
	}

	s, err := h.scheduler.PostNow(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "failed to post story: "+err.Error())
	}
	return jsonSuccess(c, "story posted", previewOf(s))
}

// Feed reloads the feed and reports its size with a few sample items.
func (h *StoryHandler) Feed(c fiber.Ctx) error {
	if h.feed == nil {
		return h.notConfigured(c)
	}

	if err := h.feed.Refresh(c.Context()); err != nil {
		return jsonError(c, fiber.StatusBadGateway, "failed to load feed: "+err.Error())
	}

	items := h.feed.Items()
	sample := items
	if len(sample) > feedSampleSize {
		sample = sample[:feedSampleSize]
	}
	snap := h.feed.Snapshot()
	return jsonSuccess(c, "", fiber.Map{
		"items_count":      len(items),
		"last_feed_update": snap.LastUpdate,
		"sample_items":     sample,
	})
}

// History lists the most recent story posts. Accepts ?limit=N.
func (h *StoryHandler) History(c fiber.Ctx) error {
	if h.history == nil {
		return jsonError(c, fiber.StatusNotFound, "story history is disabled")
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return jsonError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = min(n, maxHistoryLimit)
	}

	posts, err := h.history.ListRecentStoryPosts(c.Context(), limit)
	if err != nil {
		slog.Error("failed to list story posts", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to list story posts")
	}
	if posts == nil {
		posts = []models.StoryPost{}
	}
	return jsonSuccess(c, "", posts)
}

func (h *StoryHandler) notConfigured(c fiber.Ctx) error {
	return jsonError(c, fiber.StatusServiceUnavailable, "story poster is not configured")
}
