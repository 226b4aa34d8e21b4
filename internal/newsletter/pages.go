package newsletter

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CreateSignupPage creates a new signup page in draft status.
func (s *Store) CreateSignupPage(ctx context.Context, page *SignupPage) error {
	page.ID = uuid.New()
	page.CreatedAt = time.Now()
	page.UpdatedAt = page.CreatedAt
	if page.Status == "" {
		page.Status = StatusDraft
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signup_pages (id, slug, title, description, html_content, hero_image_url,
		list_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		page.ID, page.Slug, page.Title, page.Description, page.HTMLContent, page.HeroImageURL,
		page.ListID, page.Status, page.CreatedAt, page.UpdatedAt)
	return err
}

const pageColumns = `id, slug, title, description, html_content, hero_image_url, list_id,
	status, view_count, signup_count, created_at, updated_at`

func scanPage(row *sql.Row) (*SignupPage, error) {
	page := &SignupPage{}
	err := row.Scan(&page.ID, &page.Slug, &page.Title, &page.Description, &page.HTMLContent,
		&page.HeroImageURL, &page.ListID, &page.Status, &page.ViewCount, &page.SignupCount,
		&page.CreatedAt, &page.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return page, err
}

// GetSignupPage retrieves a page by ID.
func (s *Store) GetSignupPage(ctx context.Context, id uuid.UUID) (*SignupPage, error) {
	return scanPage(s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM signup_pages WHERE id = $1`, id))
}

// GetSignupPageBySlug retrieves a published page by slug for public serving.
func (s *Store) GetSignupPageBySlug(ctx context.Context, slug string) (*SignupPage, error) {
	return scanPage(s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM signup_pages WHERE slug = $1 AND status = $2`,
		slug, StatusPublished))
}

// GetSignupPages retrieves all pages, newest first.
func (s *Store) GetSignupPages(ctx context.Context) ([]*SignupPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM signup_pages ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*SignupPage
	for rows.Next() {
		page := &SignupPage{}
		if err := rows.Scan(&page.ID, &page.Slug, &page.Title, &page.Description, &page.HTMLContent,
			&page.HeroImageURL, &page.ListID, &page.Status, &page.ViewCount, &page.SignupCount,
			&page.CreatedAt, &page.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// UpdateSignupPage updates page content and status.
func (s *Store) UpdateSignupPage(ctx context.Context, page *SignupPage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE signup_pages SET slug = $1, title = $2, description = $3, html_content = $4,
		hero_image_url = $5, list_id = $6, status = $7, updated_at = NOW() WHERE id = $8`,
		page.Slug, page.Title, page.Description, page.HTMLContent, page.HeroImageURL,
		page.ListID, page.Status, page.ID)
	return err
}

// DeleteSignupPage removes a page.
func (s *Store) DeleteSignupPage(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM signup_pages WHERE id = $1`, id)
	return err
}

// IncrementPageCounter bumps view_count or signup_count.
func (s *Store) IncrementPageCounter(ctx context.Context, id uuid.UUID, counter string) error {
	var query string
	switch counter {
	case "view":
		query = `UPDATE signup_pages SET view_count = view_count + 1 WHERE id = $1`
	case "signup":
		query = `UPDATE signup_pages SET signup_count = signup_count + 1 WHERE id = $1`
	default:
		return nil
	}
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// CreatePageAsset records an uploaded asset.
func (s *Store) CreatePageAsset(ctx context.Context, asset *PageAsset) error {
	asset.ID = uuid.New()
	asset.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_assets (id, page_id, filename, content_type, original_url, thumbnail_url,
		size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		asset.ID, asset.PageID, asset.Filename, asset.ContentType, asset.OriginalURL,
		asset.ThumbnailURL, asset.SizeBytes, asset.CreatedAt)
	return err
}
