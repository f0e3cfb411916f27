package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"portal/internal/store"
)

var (
	ErrNotFound   = errors.New("review not found")
	ErrNotPending = errors.New("review is not pending")
)

const reviewColumns = `id, moderator_id, customer_name, customer_email, rating, review_text, business_response,
	status, admin_review_id, admin_comments, reviewed_at, submitted_at, created_at, updated_at`

// Repository persists reviews in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanReview(row interface{ Scan(...any) error }) (Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.ModeratorID, &rv.CustomerName, &rv.CustomerEmail, &rv.Rating, &rv.ReviewText,
		&rv.BusinessResponse, &rv.Status, &rv.AdminReviewID, &rv.AdminComments, &rv.ReviewedAt,
		&rv.SubmittedAt, &rv.CreatedAt, &rv.UpdatedAt)
	return rv, err
}

// Create inserts a pending review.
func (r *Repository) Create(ctx context.Context, moderatorID int, in SubmitInput) (Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, `
		INSERT INTO trustpilot_reviews (moderator_id, customer_name, customer_email, rating, review_text, business_response, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+reviewColumns,
		moderatorID, in.CustomerName, in.CustomerEmail, in.Rating, in.ReviewText, in.BusinessResponse))
	if err != nil {
		return Review{}, fmt.Errorf("create review: %w", err)
	}
	return rv, nil
}

// Get returns a review by id.
func (r *Repository) Get(ctx context.Context, id int) (Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM trustpilot_reviews WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, fmt.Errorf("get review %d: %w", id, err)
	}
	return rv, nil
}

// List returns reviews newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string) ([]Review, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+reviewColumns+` FROM trustpilot_reviews ORDER BY submitted_at DESC, id DESC`)
	}
	return r.list(ctx, `SELECT `+reviewColumns+` FROM trustpilot_reviews WHERE status = $1 ORDER BY submitted_at DESC, id DESC`, status)
}

// ListByModerator returns a moderator's reviews newest first.
func (r *Repository) ListByModerator(ctx context.Context, moderatorID int) ([]Review, error) {
	return r.list(ctx, `SELECT `+reviewColumns+` FROM trustpilot_reviews WHERE moderator_id = $1 ORDER BY submitted_at DESC, id DESC`, moderatorID)
}

// Moderate moves a pending review to status. The update only matches pending rows, so of two
// concurrent calls exactly one succeeds; the other gets ErrNotPending.
func (r *Repository) Moderate(ctx context.Context, q store.Querier, id, adminID int, status string, comments *string, at time.Time) (Review, error) {
	rv, err := scanReview(q.QueryRowContext(ctx, `
		UPDATE trustpilot_reviews
		SET status = $3, admin_review_id = $2, admin_comments = $4, reviewed_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+reviewColumns,
		id, adminID, status, comments, at))
	if err == nil {
		return rv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Review{}, fmt.Errorf("moderate review %d: %w", id, err)
	}
	var current string
	err = q.QueryRowContext(ctx, `SELECT status FROM trustpilot_reviews WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, fmt.Errorf("load review %d: %w", id, err)
	}
	return Review{}, ErrNotPending
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()
	res := []Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}
