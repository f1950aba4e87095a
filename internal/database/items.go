package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jredh-dev/greenswap/pkg/models"
)

const itemColumns = `id, owner_id, title, description, category, condition, available, co2_saved, waste_reduced, created_at, updated_at`

func scanItem(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.Description,
		&item.Category, &item.Condition, &item.Available,
		&item.Impact.CO2Saved, &item.Impact.WasteReduced,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	return item, nil
}

// CreateItem inserts a new item.
func (s *store) CreateItem(ctx context.Context, item *models.Item) error {
	const q = `INSERT INTO items (id, owner_id, title, description, category, condition, available, co2_saved, waste_reduced, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q,
		item.ID, item.OwnerID, item.Title, item.Description,
		item.Category, item.Condition, item.Available,
		item.Impact.CO2Saved, item.Impact.WasteReduced,
		item.CreatedAt, item.UpdatedAt,
	)
	return dbErr(err)
}

// GetItem returns an item by ID with its pending offers. Returns (nil, nil)
// if absent.
func (s *store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	item, err := scanItem(s.q.QueryRowContext(ctx, q, id))
	if err != nil || item == nil {
		return nil, err
	}
	if item.PendingSwapIDs, err = s.ListItemOffers(ctx, id); err != nil {
		return nil, err
	}
	return item, nil
}

// ListItemsByOwner returns an owner's items, newest first.
func (s *store) ListItemsByOwner(ctx context.Context, ownerID string) ([]models.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE owner_id = ? ORDER BY created_at DESC`
	rows, err := s.q.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	rows.Close()

	// Offers are loaded after the cursor is released; the pool has a
	// single connection.
	for i := range items {
		if items[i].PendingSwapIDs, err = s.ListItemOffers(ctx, items[i].ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// UpdateItemDetails updates the descriptive fields and credit of an item.
// Availability is deliberately excluded; see MarkItemUnavailable.
func (s *store) UpdateItemDetails(ctx context.Context, item *models.Item) error {
	const q = `UPDATE items SET title = ?, description = ?, category = ?, condition = ?,
	           co2_saved = ?, waste_reduced = ?, updated_at = ? WHERE id = ?`
	_, err := s.q.ExecContext(ctx, q,
		item.Title, item.Description, item.Category, item.Condition,
		item.Impact.CO2Saved, item.Impact.WasteReduced, item.UpdatedAt, item.ID,
	)
	return dbErr(err)
}

// ItemAvailable reports an item's availability flag. found is false when
// the item does not exist.
func (s *store) ItemAvailable(ctx context.Context, id string) (available, found bool, err error) {
	err = s.q.QueryRowContext(ctx, `SELECT available FROM items WHERE id = ?`, id).Scan(&available)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, dbErr(err)
	}
	return available, true, nil
}

// MarkItemUnavailable clears an item's availability flag. There is no
// inverse operation.
func (s *store) MarkItemUnavailable(ctx context.Context, id string) error {
	const q = `UPDATE items SET available = 0, updated_at = ? WHERE id = ? AND available = 1`
	_, err := s.q.ExecContext(ctx, q, time.Now().UTC(), id)
	return dbErr(err)
}

// --- Offer operations ---

// AddItemOffer associates a pending swap with an item. Repeated calls are no-ops.
func (s *store) AddItemOffer(ctx context.Context, itemID, swapID string) error {
	const q = `INSERT INTO item_offers (item_id, swap_id, created_at) VALUES (?, ?, ?)
	           ON CONFLICT(item_id, swap_id) DO NOTHING`
	_, err := s.q.ExecContext(ctx, q, itemID, swapID, time.Now().UTC())
	return dbErr(err)
}

// RemoveItemOffer removes the association. Missing rows are not an error.
func (s *store) RemoveItemOffer(ctx context.Context, itemID, swapID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM item_offers WHERE item_id = ? AND swap_id = ?`, itemID, swapID)
	return dbErr(err)
}

// ListItemOffers returns the IDs of swaps currently offering an item.
func (s *store) ListItemOffers(ctx context.Context, itemID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT swap_id FROM item_offers WHERE item_id = ? ORDER BY created_at, swap_id`, itemID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr(err)
		}
		ids = append(ids, id)
	}
	return ids, dbErr(rows.Err())
}
