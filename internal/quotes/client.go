// Package quotes talks to the QuoteSlate API and serves quotes through a
// resolver with an embedded fallback set.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"quotecast/internal/models"
	"quotecast/internal/resolver"
)

// DefaultAPIURL returns one random quote per request.
const DefaultAPIURL = "https://quoteslate.vercel.app/api/quotes/random"

const (
	userAgent      = "quotecast/1.0"
	maxRetries     = 3
	initialBackoff = 700 * time.Millisecond
	maxRetryAfter  = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client fetches quotes from the upstream API. It retries 429 and 5xx
// responses with exponential backoff; the caller's context bounds the whole
// exchange including retries.
type Client struct {
	url        string
	http       *http.Client
	maxRetries uint64
	backoff    time.Duration
}

// NewClient creates a client for the given endpoint.
func NewClient(url string) *Client {
	if url == "" {
		url = DefaultAPIURL
	}
	return &Client{
		url:        url,
		http:       &http.Client{},
		maxRetries: maxRetries,
		backoff:    initialBackoff,
	}
}

// Fetch returns one quote. Errors are classified as resolver transport,
// parse or timeout errors.
func (c *Client) Fetch(ctx context.Context) (models.Quote, error) {
	var body []byte
	var retryAfter time.Duration

	op := func() error {
		b, wait, err := c.get(ctx)
		retryAfter = wait
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.backoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(&retryAfterBackOff{
		BackOff: eb,
		next:    func() time.Duration { return retryAfter },
	}, c.maxRetries), ctx)

	if err := backoff.Retry(op, bo); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return models.Quote{}, &resolver.FetchError{Class: resolver.ErrTimeout, Err: err}
		}
		return models.Quote{}, err
	}

	return parseQuote(body)
}

// get performs one request. Retryable failures are returned as plain errors
// with an optional Retry-After hint; everything else is permanent.
func (c *Client) get(ctx context.Context) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(resolver.TransportError(fmt.Errorf("build request: %w", err)))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, backoff.Permanent(&resolver.FetchError{Class: resolver.ErrTimeout, Err: err})
		}
		return nil, 0, resolver.TransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := resolver.TransportError(fmt.Errorf("HTTP %s", resp.Status))
		if retryable(resp.StatusCode) {
			return nil, parseRetryAfter(resp.Header.Get("Retry-After")), statusErr
		}
		return nil, 0, backoff.Permanent(statusErr)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, resolver.TransportError(fmt.Errorf("read body: %w", err))
	}
	return b, 0, nil
}

// parseQuote accepts both `{"result": [{"quote", "author"}]}` and a bare
// `{"quote", "author"}` object. Missing fields become empty strings.
func parseQuote(body []byte) (models.Quote, error) {
	if !gjson.ValidBytes(body) {
		return models.Quote{}, resolver.ParseError(errors.New("response is not valid JSON"))
	}

	doc := gjson.ParseBytes(body)
	var q gjson.Result
	switch result := doc.Get("result"); {
	case result.IsArray() && len(result.Array()) > 0:
		q = result.Array()[0]
	case result.IsObject():
		q = result
	case doc.IsObject() && doc.Get("quote").Exists():
		q = doc
	default:
		return models.Quote{}, resolver.ParseError(errors.New("unexpected API response"))
	}

	author := strings.TrimSpace(q.Get("author").String())
	if author == "" {
		author = "Unknown"
	}
	return models.Quote{
		Quote:  strings.TrimSpace(q.Get("quote").String()),
		Author: author,
	}, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseRetryAfter understands the delay-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}
	if d < 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

// retryAfterBackOff prefers a server-provided delay over the exponential one.
type retryAfterBackOff struct {
	backoff.BackOff
	next func() time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if wait := b.next(); wait > 0 {
		return wait
	}
	return d
}
