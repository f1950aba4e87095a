package items

import (
	"context"
	"fmt"

	"github.com/jredh-dev/greenswap/internal/database"
)

// Availability tracks whether items are open for new offers. Every
// operation is idempotent so callers may retry freely. Nothing here can
// make an unavailable item available again.
type Availability interface {
	MarkUnavailable(ctx context.Context, itemID string) error
	IsAvailable(ctx context.Context, itemID string) (bool, error)
	RecordPendingOffer(ctx context.Context, itemID, swapID string) error
	ClearPendingOffer(ctx context.Context, itemID, swapID string) error
}

// Store is the SQLite-backed Availability.
type Store struct {
	db *database.DB
}

// NewStore creates an availability store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) MarkUnavailable(ctx context.Context, itemID string) error {
	if err := s.db.MarkItemUnavailable(ctx, itemID); err != nil {
		return fmt.Errorf("mark item %s unavailable: %w", itemID, err)
	}
	return nil
}

// IsAvailable returns ErrNotFound for unknown items.
func (s *Store) IsAvailable(ctx context.Context, itemID string) (bool, error) {
	available, found, err := s.db.ItemAvailable(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("item %s availability: %w", itemID, err)
	}
	if !found {
		return false, ErrNotFound
	}
	return available, nil
}

func (s *Store) RecordPendingOffer(ctx context.Context, itemID, swapID string) error {
	if err := s.db.AddItemOffer(ctx, itemID, swapID); err != nil {
		return fmt.Errorf("record offer %s on item %s: %w", swapID, itemID, err)
	}
	return nil
}

func (s *Store) ClearPendingOffer(ctx context.Context, itemID, swapID string) error {
	if err := s.db.RemoveItemOffer(ctx, itemID, swapID); err != nil {
		return fmt.Errorf("clear offer %s on item %s: %w", swapID, itemID, err)
	}
	return nil
}
