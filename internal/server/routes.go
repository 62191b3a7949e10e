package server

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quotecast/internal/handlers"
	"quotecast/internal/handlers/api"
	"quotecast/internal/middleware"
)

// Dependencies are the collaborators the routes are served from. Story
// fields stay nil when no story settings file is present; History and DB
// stay nil without a database.
type Dependencies struct {
	Quotes   handlers.QuoteSource
	Gatherer prometheus.Gatherer

	Scheduler     api.StoryControl
	Feed          api.FeedInfo
	History       api.HistoryReader
	DB            handlers.Pinger
	StoryAdmins   []int64
	StoryAccounts int
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(deps Dependencies) {
	// Initialize middleware
	adminAuth := middleware.NewAdminAuth(s.Cfg.AdminToken, s.Cfg.IsDev())

	// Initialize handlers
	quoteHandler := handlers.NewQuoteHandler(deps.Quotes, s.Cfg)
	probeHandler := handlers.NewProbeHandler(deps.DB)
	apiQuoteHandler := api.NewQuoteHandler(deps.Quotes)
	storyHandler := api.NewStoryHandler(deps.Scheduler, deps.Feed, deps.History, deps.StoryAdmins, deps.StoryAccounts)

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	if deps.Gatherer != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Frontend routes
	s.App.Get("/", quoteHandler.Index)

	// Quote API
	s.App.Get("/api/quote", apiQuoteHandler.Get)

	// Story control API
	story := s.App.Group("/api/story", adminAuth.RequireToken)
	story.Get("/status", storyHandler.Status)
	story.Post("/start", storyHandler.Start)
	story.Post("/stop", storyHandler.Stop)
	story.Post("/test", storyHandler.Test)
	story.Post("/post", storyHandler.Post)
	story.Get("/feed", storyHandler.Feed)
	story.Get("/history", storyHandler.History)
}
