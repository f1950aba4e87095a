package swap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReconcileReport counts the repairs one Reconcile pass made.
type ReconcileReport struct {
	ItemsRetired   int `json:"items_retired"`
	OffersCleared  int `json:"offers_cleared"`
	OffersRecorded int `json:"offers_recorded"`
}

// Reconcile re-derives item availability and pending offers from committed
// swap statuses. Every repair is idempotent, so passes may overlap with
// live transitions.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport

	retire, err := e.db.RetirableItems(ctx)
	if err != nil {
		return rep, fmt.Errorf("find retirable items: %w", err)
	}
	for _, id := range retire {
		if err := e.avail.MarkUnavailable(ctx, id); err != nil {
			return rep, err
		}
		rep.ItemsRetired++
	}

	stale, err := e.db.StaleOffers(ctx)
	if err != nil {
		return rep, fmt.Errorf("find stale offers: %w", err)
	}
	for _, o := range stale {
		if err := e.avail.ClearPendingOffer(ctx, o.ItemID, o.SwapID); err != nil {
			return rep, err
		}
		rep.OffersCleared++
	}

	missing, err := e.db.MissingOffers(ctx)
	if err != nil {
		return rep, fmt.Errorf("find missing offers: %w", err)
	}
	for _, o := range missing {
		if err := e.avail.RecordPendingOffer(ctx, o.ItemID, o.SwapID); err != nil {
			return rep, err
		}
		rep.OffersRecorded++
	}

	if rep != (ReconcileReport{}) {
		e.log.Info("reconciled derived swap state",
			zap.Int("items_retired", rep.ItemsRetired),
			zap.Int("offers_cleared", rep.OffersCleared),
			zap.Int("offers_recorded", rep.OffersRecorded))
	}
	return rep, nil
}
