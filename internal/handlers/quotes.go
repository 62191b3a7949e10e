package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"quotecast/internal/config"
	"quotecast/internal/models"
)

// QuoteSource resolves one quote per call.
type QuoteSource interface {
	Quote(ctx context.Context) (models.QuoteResponse, error)
}

// QuoteHandler renders the quote page.
type QuoteHandler struct {
	quotes QuoteSource
	cfg    *config.Config
}

// NewQuoteHandler creates a new quote page handler.
func NewQuoteHandler(quotes QuoteSource, cfg *config.Config) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, cfg: cfg}
}

// Index renders one quote. When nothing at all can be served the page shows
// a placeholder instead of failing.
func (h *QuoteHandler) Index(c fiber.Ctx) error {
	q, err := h.quotes.Quote(c.Context())
	if err != nil {
		slog.Error("failed to resolve quote", "error", err)
		q = models.QuoteResponse{
			Quote:  "Load error: " + err.Error(),
			Author: "—",
			Source: "error",
		}
	}

	return c.Render("index", MergeBranding(fiber.Map{
		"Quote": q,
	}, h.cfg))
}
