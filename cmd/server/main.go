package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"quotecast/internal/config"
	"quotecast/internal/db"
	"quotecast/internal/feed"
	"quotecast/internal/feedcache"
	"quotecast/internal/jobs"
	"quotecast/internal/metrics"
	"quotecast/internal/models"
	"quotecast/internal/quotes"
	"quotecast/internal/server"
	"quotecast/internal/story"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	if !cfg.IsDev() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		if cfg.AdminToken == "" {
			log.Println("ADMIN_TOKEN not set; story control API is locked")
		}
	}

	// Initialize database (story post history only)
	var database *db.DB
	if cfg.HistoryEnabled() {
		var err error
		database, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		// Run migrations
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Migrations completed successfully")
	} else {
		log.Println("DATABASE_URL not set; story post history is disabled")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var postCounter metrics.StoryPostCounter
	if database != nil {
		postCounter = database
	}
	m := metrics.New(reg, postCounter)

	// Quotes
	quoteService := quotes.NewService(quotes.NewClient(cfg.QuotesAPIURL), quotes.ServiceConfig{
		CacheTTL: cfg.CacheTTL,
		CallGap:  cfg.CallGap,
		Timeout:  cfg.UpstreamTimeout,
		Observer: m.ResolveObserver("quotes"),
	})

	deps := server.Dependencies{
		Quotes:   quoteService,
		Gatherer: reg,
	}
	if database != nil {
		deps.DB = database
		deps.History = database
	}

	// Story poster
	storyCfg, err := config.LoadStoryConfig(cfg.StoryConfigFile)
	if err != nil {
		log.Fatalf("Failed to load story config: %v", err)
	}

	var scheduler *jobs.StoryScheduler
	if storyCfg != nil {
		feedClient := feed.NewClient(storyCfg.FeedURL, 0)
		items := feedcache.New[models.Offer](feedClient.Fetch, feedcache.Options{
			TTL:       cfg.FeedTTL,
			Logger:    slog.Default().With("component", "feed"),
			OnRefresh: m.ObserveFeedRefresh,
		})
		builder := story.NewBuilder(items, storyCfg.Title, storyCfg.Text, nil)

		var poster story.Poster = story.LogPoster{}
		if cfg.TelegramBotToken != "" {
			poster = story.NewTelegramPoster(cfg.TelegramAPIURL, cfg.TelegramBotToken, storyCfg.Accounts)
			log.Printf("Posting stories to %d Telegram accounts", len(storyCfg.Accounts))
		} else {
			log.Println("TELEGRAM_BOT_TOKEN not set; stories are only logged")
		}

		opts := jobs.SchedulerOptions{Recorder: m}
		if database != nil {
			opts.History = database
		}
		scheduler, err = jobs.NewStoryScheduler(storyCfg, builder, poster, opts)
		if err != nil {
			log.Fatalf("Failed to create story scheduler: %v", err)
		}

		go jobs.NewFeedRefresher(items, cfg.FeedTTL, nil, nil).Start(ctx)

		if storyCfg.Autostart {
			if err := scheduler.Start(); err != nil {
				log.Fatalf("Failed to start story scheduler: %v", err)
			}
		}

		deps.Scheduler = scheduler
		deps.Feed = items
		deps.StoryAdmins = storyCfg.Admins
		deps.StoryAccounts = len(storyCfg.Accounts)
	} else {
		log.Printf("%s not found; story poster is disabled", cfg.StoryConfigFile)
	}

	// Create server
	srv := server.New(cfg)
	srv.RegisterRoutes(deps)

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Server started on %s", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if scheduler != nil && scheduler.Running() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("Failed to stop story scheduler: %v", err)
		}
	}
	if err := srv.Shutdown(); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
