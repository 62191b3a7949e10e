package quotes

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/quartz"

	"quotecast/internal/models"
	"quotecast/internal/resolver"
)

// Fetcher is the upstream quote source.
type Fetcher interface {
	Fetch(ctx context.Context) (models.Quote, error)
}

// ServiceConfig tunes the resolver behind a Service.
type ServiceConfig struct {
	CacheTTL time.Duration
	CallGap  time.Duration
	Timeout  time.Duration
	// Fallback defaults to LocalQuotes.
	Fallback []models.Quote
	Clock    quartz.Clock
	Logger   *slog.Logger
	Observer resolver.Observer
}

// Service resolves quotes for the web layer.
type Service struct {
	resolver *resolver.Resolver[models.Quote]
}

// NewService wires fetcher into a resolver.
func NewService(fetcher Fetcher, cfg ServiceConfig) *Service {
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = LocalQuotes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver.New(fetcher.Fetch, resolver.Options[models.Quote]{
			Debounce: cfg.CallGap,
			TTL:      cfg.CacheTTL,
			Timeout:  cfg.Timeout,
			Fallback: fallback,
			Clock:    cfg.Clock,
			Logger:   logger.With("component", "quotes"),
			Observer: cfg.Observer,
		}),
	}
}

// Quote returns one quote tagged with where it came from. It fails only
// with resolver.ErrUnavailable.
func (s *Service) Quote(ctx context.Context) (models.QuoteResponse, error) {
	res, err := s.resolver.Resolve(ctx)
	if err != nil {
		return models.QuoteResponse{}, err
	}
	return models.QuoteResponse{
		Quote:  res.Payload.Quote,
		Author: res.Payload.Author,
		Source: string(res.Provenance),
	}, nil
}
