package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jredh-dev/greenswap/pkg/models"
)

const swapColumns = `id, initiator_id, receiver_id, initiator_item_id, receiver_item_id, status, message,
	meetup_location, meetup_time, co2_saved, waste_reduced, created_at, updated_at, completed_at`

func scanSwap(row rowScanner) (*models.Swap, error) {
	s := &models.Swap{}
	var meetupTime, completedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.InitiatorID, &s.ReceiverID, &s.InitiatorItemID, &s.ReceiverItemID,
		&s.Status, &s.Message, &s.MeetupLocation, &meetupTime,
		&s.Impact.CO2Saved, &s.Impact.WasteReduced,
		&s.CreatedAt, &s.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	if meetupTime.Valid {
		t := meetupTime.Time
		s.MeetupTime = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return s, nil
}

// CreateSwap inserts a new swap.
func (s *store) CreateSwap(ctx context.Context, sw *models.Swap) error {
	const q = `INSERT INTO swaps (id, initiator_id, receiver_id, initiator_item_id, receiver_item_id, status, message,
	           meetup_location, meetup_time, co2_saved, waste_reduced, created_at, updated_at, completed_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q,
		sw.ID, sw.InitiatorID, sw.ReceiverID, sw.InitiatorItemID, sw.ReceiverItemID,
		sw.Status, sw.Message, sw.MeetupLocation, nullTime(sw.MeetupTime),
		sw.Impact.CO2Saved, sw.Impact.WasteReduced,
		sw.CreatedAt, sw.UpdatedAt, nullTime(sw.CompletedAt),
	)
	return dbErr(err)
}

// GetSwap returns a swap by ID. Returns (nil, nil) if absent.
func (s *store) GetSwap(ctx context.Context, id string) (*models.Swap, error) {
	q := `SELECT ` + swapColumns + ` FROM swaps WHERE id = ?`
	return scanSwap(s.q.QueryRowContext(ctx, q, id))
}

// ListSwapsByUser returns swaps the user participates in, newest first,
// optionally filtered by status.
func (s *store) ListSwapsByUser(ctx context.Context, userID string, status models.SwapStatus) ([]models.Swap, error) {
	q := `SELECT ` + swapColumns + ` FROM swaps WHERE (initiator_id = ? OR receiver_id = ?)`
	args := []interface{}{userID, userID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	return s.querySwaps(ctx, q, args...)
}

// SwapStatusUpdate carries the fields written alongside a status change.
// Nil or zero fields leave the stored value untouched.
type SwapStatusUpdate struct {
	Status         models.SwapStatus
	MeetupLocation string
	MeetupTime     *time.Time
	Impact         *models.Impact
	CompletedAt    *time.Time
}

// CompareAndSetSwapStatus moves a swap from status `from` to u.Status. It
// reports false, without writing, if the stored status is no longer `from`.
func (s *store) CompareAndSetSwapStatus(ctx context.Context, id string, from models.SwapStatus, u SwapStatusUpdate) (bool, error) {
	q := `UPDATE swaps SET status = ?, updated_at = ?`
	now := time.Now().UTC()
	args := []interface{}{string(u.Status), now}
	if u.MeetupLocation != "" {
		q += `, meetup_location = ?`
		args = append(args, u.MeetupLocation)
	}
	if u.MeetupTime != nil {
		q += `, meetup_time = ?`
		args = append(args, u.MeetupTime.UTC())
	}
	if u.Impact != nil {
		q += `, co2_saved = ?, waste_reduced = ?`
		args = append(args, u.Impact.CO2Saved, u.Impact.WasteReduced)
	}
	if u.CompletedAt != nil {
		q += `, completed_at = ?`
		args = append(args, u.CompletedAt.UTC())
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(from))

	res, err := s.q.ExecContext(ctx, q, args...)
	if err != nil {
		return false, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr(err)
	}
	return n == 1, nil
}

// CountCompletedSwapsWithItems counts completed swaps other than exclude
// that involve any of the given items.
func (s *store) CountCompletedSwapsWithItems(ctx context.Context, exclude string, itemA, itemB string) (int, error) {
	const q = `SELECT COUNT(*) FROM swaps WHERE status = ? AND id <> ?
	           AND (initiator_item_id IN (?, ?) OR receiver_item_id IN (?, ?))`
	var n int
	err := s.q.QueryRowContext(ctx, q, string(models.SwapStatusCompleted), exclude, itemA, itemB, itemA, itemB).Scan(&n)
	return n, dbErr(err)
}

// ItemOffer links an item to a swap proposing it.
type ItemOffer struct {
	ItemID string
	SwapID string
}

// StaleOffers returns offers that point at swaps in a terminal state.
func (s *store) StaleOffers(ctx context.Context) ([]ItemOffer, error) {
	const q = `SELECT o.item_id, o.swap_id FROM item_offers o JOIN swaps s ON s.id = o.swap_id
	           WHERE s.status IN (?, ?, ?) ORDER BY o.created_at`
	return s.queryOffers(ctx, q,
		string(models.SwapStatusRejected), string(models.SwapStatusCompleted), string(models.SwapStatusCancelled))
}

// MissingOffers returns offers that open swaps should hold on their items
// but do not.
func (s *store) MissingOffers(ctx context.Context) ([]ItemOffer, error) {
	const q = `SELECT s.initiator_item_id, s.id FROM swaps s WHERE s.status IN (?, ?)
	           AND NOT EXISTS (SELECT 1 FROM item_offers o WHERE o.item_id = s.initiator_item_id AND o.swap_id = s.id)
	           UNION ALL
	           SELECT s.receiver_item_id, s.id FROM swaps s WHERE s.status IN (?, ?)
	           AND NOT EXISTS (SELECT 1 FROM item_offers o WHERE o.item_id = s.receiver_item_id AND o.swap_id = s.id)`
	open := []interface{}{
		string(models.SwapStatusPending), string(models.SwapStatusAccepted),
		string(models.SwapStatusPending), string(models.SwapStatusAccepted),
	}
	return s.queryOffers(ctx, q, open...)
}

// RetirableItems returns items still flagged available although a
// completed swap consumed them.
func (s *store) RetirableItems(ctx context.Context) ([]string, error) {
	const q = `SELECT i.id FROM items i WHERE i.available = 1 AND EXISTS (
	           SELECT 1 FROM swaps s WHERE s.status = ?
	           AND (s.initiator_item_id = i.id OR s.receiver_item_id = i.id))`
	rows, err := s.q.QueryContext(ctx, q, string(models.SwapStatusCompleted))
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr(err)
		}
		ids = append(ids, id)
	}
	return ids, dbErr(rows.Err())
}

func (s *store) querySwaps(ctx context.Context, query string, args ...interface{}) ([]models.Swap, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var swaps []models.Swap
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, *sw)
	}
	return swaps, dbErr(rows.Err())
}

func (s *store) queryOffers(ctx context.Context, query string, args ...interface{}) ([]ItemOffer, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var offers []ItemOffer
	for rows.Next() {
		var o ItemOffer
		if err := rows.Scan(&o.ItemID, &o.SwapID); err != nil {
			return nil, dbErr(err)
		}
		offers = append(offers, o)
	}
	return offers, dbErr(rows.Err())
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
