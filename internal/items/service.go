// Package items manages the item catalog and item availability.
package items

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/impact"
	"github.com/jredh-dev/greenswap/pkg/models"
)

// Service handles item catalog operations.
type Service struct {
	db  *database.DB
	log *zap.Logger
}

// New creates a new item service.
func New(db *database.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// NewItem is the input to Create.
type NewItem struct {
	Title       string
	Description string
	Category    models.Category
	Condition   models.ItemCondition
}

// Patch lists optional item changes. Nil fields are left as they are.
type Patch struct {
	Title       *string
	Description *string
	Category    *models.Category
	Condition   *models.ItemCondition
}

// Create lists a new available item owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in NewItem) (*models.Item, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if err := validateKind(in.Category, in.Condition); err != nil {
		return nil, err
	}
	credit, err := impact.CreditFor(in.Category, in.Condition)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := &models.Item{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Category:       in.Category,
		Condition:      in.Condition,
		Available:      true,
		Impact:         credit,
		PendingSwapIDs: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.log.Info("item created",
		zap.String("item_id", item.ID),
		zap.String("owner_id", ownerID),
		zap.String("category", string(item.Category)),
		zap.String("condition", string(item.Condition)))
	return item, nil
}

// Get returns an item with its pending offers.
func (s *Service) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.db.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// ListByOwner returns an owner's items.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]models.Item, error) {
	items, err := s.db.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

// Update applies p to an item owned by actorID. Credit is recomputed only
// when category or condition actually change.
func (s *Service) Update(ctx context.Context, actorID, id string, p Patch) (*models.Item, error) {
	var updated *models.Item
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if item == nil {
			return ErrNotFound
		}
		if item.OwnerID != actorID {
			return ErrForbidden
		}

		if p.Title != nil {
			title := strings.TrimSpace(*p.Title)
			if title == "" {
				return fmt.Errorf("%w: title is required", ErrInvalidInput)
			}
			item.Title = title
		}
		if p.Description != nil {
			item.Description = strings.TrimSpace(*p.Description)
		}

		cat, cond := item.Category, item.Condition
		if p.Category != nil {
			cat = *p.Category
		}
		if p.Condition != nil {
			cond = *p.Condition
		}
		if err := validateKind(cat, cond); err != nil {
			return err
		}

		recompute := false
		if p.Category != nil && *p.Category != item.Category {
			item.Category = *p.Category
			recompute = true
		}
		if p.Condition != nil && *p.Condition != item.Condition {
			item.Condition = *p.Condition
			recompute = true
		}
		if recompute {
			credit, err := impact.CreditFor(item.Category, item.Condition)
			if err != nil {
				return err
			}
			item.Impact = credit
		}

		item.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateItemDetails(ctx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func validateKind(cat models.Category, cond models.ItemCondition) error {
	if !impact.ValidCategory(cat) {
		return fmt.Errorf("%w: %w %q", ErrInvalidInput, impact.ErrInvalidCategory, cat)
	}
	if !impact.ValidCondition(cond) {
		return fmt.Errorf("%w: %w %q", ErrInvalidInput, impact.ErrInvalidCondition, cond)
	}
	return nil
}
