package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"quotecast/internal/models"
	"quotecast/internal/resolver"
)

// QuoteSource resolves one quote per call.
type QuoteSource interface {
	Quote(ctx context.Context) (models.QuoteResponse, error)
}

// QuoteHandler serves quotes as JSON.
type QuoteHandler struct {
	quotes QuoteSource
}

// NewQuoteHandler creates a new API quote handler.
func NewQuoteHandler(quotes QuoteSource) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// Get resolves one quote.
func (h *QuoteHandler) Get(c fiber.Ctx) error {
	q, err := h.quotes.Quote(c.Context())
	if err != nil {
		if errors.Is(err, resolver.ErrUnavailable) {
			return jsonFail(c, fiber.StatusBadGateway, err.Error())
		}
		slog.Error("failed to resolve quote", "error", err)
		return jsonFail(c, fiber.StatusInternalServerError, "failed to resolve quote")
	}
	return jsonOK(c, q)
}
