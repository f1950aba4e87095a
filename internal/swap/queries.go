package swap

import (
	"context"
	"fmt"

	"github.com/jredh-dev/greenswap/pkg/models"
)

// Get returns a swap visible to actorID. Only participants can see a swap.
func (e *Engine) Get(ctx context.Context, actorID, swapID string) (*models.Swap, error) {
	sw, err := e.db.GetSwap(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("get swap: %w", err)
	}
	if sw == nil {
		return nil, ErrNotFound
	}
	if !sw.IsParticipant(actorID) {
		return nil, ErrForbidden
	}
	return sw, nil
}

// List returns actorID's swaps, newest first. An empty status lists all.
func (e *Engine) List(ctx context.Context, actorID string, status models.SwapStatus) ([]models.Swap, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	swaps, err := e.db.ListSwapsByUser(ctx, actorID, status)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	if swaps == nil {
		swaps = []models.Swap{}
	}
	return swaps, nil
}

// Impact returns the stored impact of a swap. It is zero until the swap
// completes.
func (e *Engine) Impact(ctx context.Context, actorID, swapID string) (models.Impact, error) {
	sw, err := e.Get(ctx, actorID, swapID)
	if err != nil {
		return models.Impact{}, err
	}
	return sw.Impact, nil
}
