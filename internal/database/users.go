package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jredh-dev/greenswap/pkg/models"
)

// userColumns is the SELECT column list for user queries.
const userColumns = `id, username, co2_saved, waste_reduced, swaps_completed, rating_average, rating_count, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.CO2Saved, &u.WasteReduced, &u.SwapsCompleted,
		&u.RatingAverage, &u.RatingCount, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	return u, nil
}

// UpsertUser inserts a user with a zero ledger, or refreshes the username
// of an existing one. Ledger and rating columns are never touched here.
func (s *store) UpsertUser(ctx context.Context, id, username string) error {
	const q = `INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)
	           ON CONFLICT(id) DO UPDATE SET username = excluded.username, updated_at = excluded.updated_at
	           WHERE users.username <> excluded.username`
	now := time.Now().UTC()
	_, err := s.q.ExecContext(ctx, q, id, username, now, now)
	return dbErr(err)
}

// GetUser looks up a user by ID. Returns (nil, nil) if absent.
func (s *store) GetUser(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.q.QueryRowContext(ctx, q, id))
}

// CreditUser adds to a user's ledger counters. It reports false if the
// user does not exist.
func (s *store) CreditUser(ctx context.Context, id string, delta models.Impact, swaps int) (bool, error) {
	const q = `UPDATE users SET co2_saved = co2_saved + ?, waste_reduced = waste_reduced + ?,
	           swaps_completed = swaps_completed + ?, updated_at = ? WHERE id = ?`
	res, err := s.q.ExecContext(ctx, q, delta.CO2Saved, delta.WasteReduced, swaps, time.Now().UTC(), id)
	if err != nil {
		return false, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr(err)
	}
	return n == 1, nil
}

// SetUserRating stores a user's rating aggregate.
func (s *store) SetUserRating(ctx context.Context, id string, summary models.RatingSummary) error {
	const q = `UPDATE users SET rating_average = ?, rating_count = ?, updated_at = ? WHERE id = ?`
	_, err := s.q.ExecContext(ctx, q, summary.Average, summary.Count, time.Now().UTC(), id)
	return dbErr(err)
}
