package story

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"quotecast/internal/models"
)

// Poster publishes a story.
type Poster interface {
	Post(ctx context.Context, s *models.Story) error
}

// LogPoster only logs stories. It is used when no Telegram token is set.
type LogPoster struct {
	Logger *slog.Logger
}

// Post logs the story.
func (p LogPoster) Post(ctx context.Context, s *models.Story) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "story posted",
		"story_id", s.ID,
		"title", s.Title,
		"text", s.Text,
		"image_url", s.ImageURL,
	)
	return nil
}

const (
	// DefaultTelegramAPI is the Bot API base URL.
	DefaultTelegramAPI = "https://api.telegram.org"
	maxCaptionRunes    = 1024
)

// TelegramPoster sends the story image with its caption to every account
// through the Bot API sendPhoto method.
type TelegramPoster struct {
	baseURL  string
	token    string
	accounts []int64
	client   *http.Client
}

// NewTelegramPoster creates a poster for the given bot token and chat IDs.
func NewTelegramPoster(baseURL, token string, accounts []int64) *TelegramPoster {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &TelegramPoster{
		baseURL:  baseURL,
		token:    token,
		accounts: accounts,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Post sends the story to each account. It fails if any send fails; the
// error lists every failed account.
func (p *TelegramPoster) Post(ctx context.Context, s *models.Story) error {
	if len(p.accounts) == 0 {
		return errors.New("no telegram accounts configured")
	}
	var errs []error
	for _, chatID := range p.accounts {
		if err := p.sendPhoto(ctx, chatID, s); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *TelegramPoster) sendPhoto(ctx context.Context, chatID int64, s *models.Story) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if err := w.WriteField("caption", Caption(s)); err != nil {
		return err
	}
	fw, err := w.CreateFormFile("photo", "story.jpg")
	if err != nil {
		return err
	}
	if _, err := fw.Write(s.Image); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("build sendPhoto request: %w", withoutURL(err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendPhoto failed: %w", withoutURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read sendPhoto response: %w", err)
	}
	if !gjson.GetBytes(respBody, "ok").Bool() {
		desc := gjson.GetBytes(respBody, "description").String()
		if desc == "" {
			desc = resp.Status
		}
		return fmt.Errorf("sendPhoto rejected: %s", desc)
	}
	return nil
}

// withoutURL drops the request URL from err. The URL carries the bot token.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// Caption joins title and text, cut to Telegram's caption limit.
func Caption(s *models.Story) string {
	caption := s.Title
	if s.Text != "" {
		if caption != "" {
			caption += "\n\n"
		}
		caption += s.Text
	}
	if r := []rune(caption); len(r) > maxCaptionRunes {
		caption = string(r[:maxCaptionRunes-1]) + "…"
	}
	return caption
}
