package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"quotecast/internal/models"
	"quotecast/internal/validation"
)

var (
	// ErrNoItems means the feed cache had nothing to draw from.
	ErrNoItems = errors.New("no feed items available")
	// ErrNoImage means the drawn offer has no usable image URL.
	ErrNoImage = errors.New("offer has no image URL")
)

const (
	imageTimeout  = 30 * time.Second
	maxImageBytes = 20 << 20
)

// imageFields are checked, in order, after the offer's picture list.
var imageFields = []string{"picture", "image", "image_url", "photo", "url"}

// ItemSource hands out random feed offers.
type ItemSource interface {
	Random(ctx context.Context) (models.Offer, bool)
}

// Builder assembles stories from random feed offers.
type Builder struct {
	items         ItemSource
	titleTemplate string
	textTemplate  string
	client        *http.Client
	logger        *slog.Logger
	// checkURL vets image URLs taken from the feed before download.
	checkURL func(string) (bool, string)
}

// NewBuilder creates a story builder.
func NewBuilder(items ItemSource, titleTemplate, textTemplate string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		items:         items,
		titleTemplate: titleTemplate,
		textTemplate:  textTemplate,
		client:        &http.Client{Timeout: imageTimeout},
		logger:        logger,
		checkURL:      validation.ValidateRemoteURL,
	}
}

// Build draws an offer, formats its title and text, and downloads its image.
func (b *Builder) Build(ctx context.Context) (*models.Story, error) {
	offer, ok := b.items.Random(ctx)
	if !ok {
		return nil, ErrNoItems
	}

	title := Format(b.titleTemplate, offer)
	text := Format(b.textTemplate, offer)

	imageURL := ImageURL(offer)
	if imageURL == "" {
		b.logger.Warn("offer has no image", "offer_id", offer.Get("id"))
		return nil, ErrNoImage
	}
	if ok, reason := b.checkURL(imageURL); !ok {
		b.logger.Warn("offer image rejected", "offer_id", offer.Get("id"), "url", imageURL, "reason", reason)
		return nil, fmt.Errorf("%w: %s", ErrNoImage, reason)
	}

	image, err := b.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	s := &models.Story{
		ID:       uuid.New(),
		Title:    title,
		Text:     text,
		ImageURL: imageURL,
		Image:    image,
	}
	b.logger.Info("story created", "story_id", s.ID, "title", title)
	return s, nil
}

// ImageURL returns the first non-empty image candidate of offer.
func ImageURL(offer models.Offer) string {
	for _, u := range offer.Pictures {
		if u != "" {
			return u
		}
	}
	for _, f := range imageFields {
		if u := offer.Fields[f]; u != "" {
			return u
		}
	}
	return ""
}

func (b *Builder) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
