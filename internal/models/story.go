package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer is one item of a commerce feed, flattened to field name -> value.
type Offer struct {
	Fields   map[string]string `json:"fields"`
	Pictures []string          `json:"pictures,omitempty"`
}

// Get returns the value of field, or "" when absent.
func (o Offer) Get(field string) string {
	return o.Fields[field]
}

// Story is a formatted post ready to be published.
type Story struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	ImageURL string    `json:"image_url"`
	Image    []byte    `json:"-"`
}

// Story post outcomes.
const (
	PostPublished = "published"
	PostFailed    = "failed"
	PostSkipped   = "skipped"
)

// StoryPost is a recorded attempt to publish a story.
type StoryPost struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	ImageURL string    `json:"image_url"`
	Status   string    `json:"status"`
	Error    *string   `json:"error,omitempty"`
	PostedAt time.Time `json:"posted_at"`
}

// IsPublished returns true if the story reached at least one account.
func (p *StoryPost) IsPublished() bool {
	return p.Status == PostPublished
}

// StoryPostCount is the number of posts with a given status.
type StoryPostCount struct {
	Status string
	Count  int64
}
