package database

import (
	"context"
	"database/sql"

	"github.com/jredh-dev/greenswap/pkg/models"
)

const reviewColumns = `id, swap_id, reviewer_id, reviewee_id, direction, rating, comment, created_at, updated_at`

func scanReview(row rowScanner) (*models.Review, error) {
	r := &models.Review{}
	err := row.Scan(
		&r.ID, &r.SwapID, &r.ReviewerID, &r.RevieweeID, &r.Direction,
		&r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	return r, nil
}

// CreateReview inserts a review. A second review by the same reviewer for
// the same swap fails with ErrDuplicate.
func (s *store) CreateReview(ctx context.Context, r *models.Review) error {
	const q = `INSERT INTO reviews (id, swap_id, reviewer_id, reviewee_id, direction, rating, comment, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q,
		r.ID, r.SwapID, r.ReviewerID, r.RevieweeID, r.Direction,
		r.Rating, r.Comment, r.CreatedAt, r.UpdatedAt,
	)
	return dbErr(err)
}

// GetReview returns a review by ID. Returns (nil, nil) if absent.
func (s *store) GetReview(ctx context.Context, id string) (*models.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = ?`
	return scanReview(s.q.QueryRowContext(ctx, q, id))
}

// GetReviewBySwapAndReviewer returns the reviewer's review of a swap, if any.
func (s *store) GetReviewBySwapAndReviewer(ctx context.Context, swapID, reviewerID string) (*models.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE swap_id = ? AND reviewer_id = ?`
	return scanReview(s.q.QueryRowContext(ctx, q, swapID, reviewerID))
}

// UpdateReview updates the rating and comment of a review.
func (s *store) UpdateReview(ctx context.Context, r *models.Review) error {
	const q = `UPDATE reviews SET rating = ?, comment = ?, updated_at = ? WHERE id = ?`
	_, err := s.q.ExecContext(ctx, q, r.Rating, r.Comment, r.UpdatedAt, r.ID)
	return dbErr(err)
}

// ListReviewsBySwap returns all reviews attached to a swap.
func (s *store) ListReviewsBySwap(ctx context.Context, swapID string) ([]models.Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE swap_id = ? ORDER BY created_at`
	rows, err := s.q.QueryContext(ctx, q, swapID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}
	return reviews, dbErr(rows.Err())
}

// RatingTotals returns the sum and count of all ratings a user has received.
func (s *store) RatingTotals(ctx context.Context, revieweeID string) (sum, count int, err error) {
	const q = `SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews WHERE reviewee_id = ?`
	err = s.q.QueryRowContext(ctx, q, revieweeID).Scan(&sum, &count)
	return sum, count, dbErr(err)
}
