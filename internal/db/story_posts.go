package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quotecast/internal/models"
)

// CreateStoryPost records a publish attempt. ID and PostedAt are filled in
// by the database when zero.
func (d *DB) CreateStoryPost(ctx context.Context, p *models.StoryPost) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO story_posts (id, title, text, image_url, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING posted_at
	`
	return d.Pool.QueryRow(ctx, query, p.ID, p.Title, p.Text, p.ImageURL, p.Status, p.Error).Scan(&p.PostedAt)
}

// GetStoryPostByID retrieves a single story post.
func (d *DB) GetStoryPostByID(ctx context.Context, id uuid.UUID) (*models.StoryPost, error) {
	query := `
		SELECT id, title, text, image_url, status, error, posted_at
		FROM story_posts WHERE id = $1
	`

	var p models.StoryPost
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Text, &p.ImageURL, &p.Status, &p.Error, &p.PostedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStoryPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListRecentStoryPosts returns the newest posts first.
func (d *DB) ListRecentStoryPosts(ctx context.Context, limit int) ([]models.StoryPost, error) {
	query := `
		SELECT id, title, text, image_url, status, error, posted_at
		FROM story_posts
		ORDER BY posted_at DESC
		LIMIT $1
	`

	rows, err := d.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.StoryPost
	for rows.Next() {
		var p models.StoryPost
		if err := rows.Scan(&p.ID, &p.Title, &p.Text, &p.ImageURL, &p.Status, &p.Error, &p.PostedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountStoryPostsByStatus returns post totals per status for metrics export.
func (d *DB) CountStoryPostsByStatus(ctx context.Context) ([]models.StoryPostCount, error) {
	rows, err := d.Pool.Query(ctx, `SELECT status, COUNT(*) FROM story_posts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.StoryPostCount
	for rows.Next() {
		var c models.StoryPostCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
