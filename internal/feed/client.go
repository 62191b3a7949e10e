package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"quotecast/internal/models"
)

const (
	// DefaultTimeout bounds one feed download.
	DefaultTimeout = 30 * time.Second
	// MaxFeedSize bounds the downloaded feed body.
	MaxFeedSize = 50 << 20
)

var (
	// ErrNoURL is returned when no feed URL is configured.
	ErrNoURL = errors.New("feed URL is not configured")
	// ErrTooLarge is returned when the feed body exceeds the size limit.
	ErrTooLarge = errors.New("feed is too large")
)

// Client downloads a YML feed over HTTP.
type Client struct {
	url      string
	client   *http.Client
	maxBytes int64
}

// NewClient creates a feed client for url.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		maxBytes: MaxFeedSize,
	}
}

// Fetch downloads and parses the feed.
func (c *Client) Fetch(ctx context.Context) ([]models.Offer, error) {
	if c.url == "" {
		return nil, ErrNoURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	req.Header.Set("User-Agent", "quotecast-story/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch feed: HTTP %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, c.maxBytes)
	}
	return Parse(bytes.NewReader(data))
}
