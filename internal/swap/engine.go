// Package swap runs the swap lifecycle: creation, status transitions and
// the side effects each transition owns.
//
// Status, stored impact and ledger credit change together in one database
// transaction, and a new swap's pending offers commit with it. Retiring
// items and releasing offers are derived state: they are applied after
// commit within a bounded retry budget and repaired by Reconcile.
// Notifications go out last and never affect the result.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/impact"
	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/internal/ledger"
	"github.com/jredh-dev/greenswap/internal/metrics"
	"github.com/jredh-dev/greenswap/internal/notify"
	"github.com/jredh-dev/greenswap/pkg/models"
)

// Config tunes post-commit side effects. SideEffectBudget caps the total
// time one transition spends retrying them.
type Config struct {
	SideEffectAttempts int
	SideEffectBackoff  time.Duration
	SideEffectBudget   time.Duration
}

const defaultSideEffectBudget = 2 * time.Second

// Engine owns swap state changes.
type Engine struct {
	db       *database.DB
	avail    items.Availability
	notifier notify.Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates a swap engine. A nil notifier discards notifications and a
// nil metrics records nothing.
func New(db *database.DB, avail items.Availability, notifier notify.Notifier, log *zap.Logger, m *metrics.Metrics, cfg Config) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.SideEffectAttempts < 1 {
		cfg.SideEffectAttempts = 1
	}
	if cfg.SideEffectBudget <= 0 {
		cfg.SideEffectBudget = defaultSideEffectBudget
	}
	return &Engine{db: db, avail: avail, notifier: notifier, log: log, metrics: m, cfg: cfg}
}

// NewSwap is the input to Create.
type NewSwap struct {
	InitiatorItemID string
	ReceiverItemID  string
	Message         string
}

// Payload carries optional transition details.
type Payload struct {
	MeetupLocation string
	MeetupTime     *time.Time
}

// Create proposes a swap of the initiator's item for another user's item.
// The swap starts pending with an offer recorded on both items, and the
// receiver is notified.
func (e *Engine) Create(ctx context.Context, initiatorID string, in NewSwap) (*models.Swap, error) {
	if in.InitiatorItemID == "" || in.ReceiverItemID == "" || in.InitiatorItemID == in.ReceiverItemID {
		return nil, fmt.Errorf("%w: two distinct items are required", ErrInvalidSwap)
	}

	var sw *models.Swap
	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		mine, err := tx.GetItem(ctx, in.InitiatorItemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if mine == nil {
			return fmt.Errorf("%w: item %s", items.ErrNotFound, in.InitiatorItemID)
		}
		if mine.OwnerID != initiatorID {
			return fmt.Errorf("%w: item %s is not yours", ErrForbidden, mine.ID)
		}
		theirs, err := tx.GetItem(ctx, in.ReceiverItemID)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}
		if theirs == nil {
			return fmt.Errorf("%w: item %s", items.ErrNotFound, in.ReceiverItemID)
		}
		if theirs.OwnerID == initiatorID {
			return fmt.Errorf("%w: cannot swap with yourself", ErrInvalidSwap)
		}
		if !mine.Available || !theirs.Available {
			return ErrItemUnavailable
		}
		n, err := tx.CountCompletedSwapsWithItems(ctx, "", mine.ID, theirs.ID)
		if err != nil {
			return fmt.Errorf("check items: %w", err)
		}
		if n > 0 {
			return ErrItemUnavailable
		}

		now := time.Now().UTC()
		sw = &models.Swap{
			ID:              uuid.New().String(),
			InitiatorID:     initiatorID,
			ReceiverID:      theirs.OwnerID,
			InitiatorItemID: mine.ID,
			ReceiverItemID:  theirs.ID,
			Status:          models.SwapStatusPending,
			Message:         strings.TrimSpace(in.Message),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateSwap(ctx, sw); err != nil {
			return fmt.Errorf("create swap: %w", err)
		}
		for _, itemID := range []string{sw.InitiatorItemID, sw.ReceiverItemID} {
			if err := tx.AddItemOffer(ctx, itemID, sw.ID); err != nil {
				return fmt.Errorf("record offer on item %s: %w", itemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.SwapCreated()
	e.log.Info("swap created",
		zap.String("swap_id", sw.ID),
		zap.String("initiator_id", sw.InitiatorID),
		zap.String("receiver_id", sw.ReceiverID))

	e.notifier.Notify(context.WithoutCancel(ctx), models.Notification{
		Recipient:   sw.ReceiverID,
		Sender:      sw.InitiatorID,
		Kind:        models.NotifySwapRequest,
		Title:       "New swap request",
		Body:        "Someone wants to swap for your item.",
		RelatedItem: sw.ReceiverItemID,
		RelatedSwap: sw.ID,
	})
	return sw, nil
}

// Transition moves a swap to target on behalf of actorID and applies the
// edge's effects. A transition that loses a race with another caller fails
// with ErrInvalidTransition and changes nothing.
func (e *Engine) Transition(ctx context.Context, swapID, actorID string, target models.SwapStatus, p Payload) (*models.Swap, error) {
	start := time.Now()
	label := string(target)
	if !target.Valid() {
		label = "unknown"
	}

	var (
		sw     *models.Swap
		edge   Edge
		credit models.Impact
	)
	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		cur, err := tx.GetSwap(ctx, swapID)
		if err != nil {
			return fmt.Errorf("get swap: %w", err)
		}
		if cur == nil {
			return ErrNotFound
		}
		if !cur.IsParticipant(actorID) {
			return ErrForbidden
		}
		var ok bool
		edge, ok = Lookup(cur.Status, target)
		if !ok {
			return fmt.Errorf("%w: %s -> %q, allowed %v", ErrInvalidTransition, cur.Status, target, Successors(cur.Status))
		}
		if !edge.Permits(cur, actorID) {
			return fmt.Errorf("%w: only the receiver may move a swap to %s", ErrForbidden, target)
		}

		upd := database.SwapStatusUpdate{Status: target}
		if edge.Effect == EffectAccept || edge.Effect == EffectComplete {
			upd.MeetupLocation = strings.TrimSpace(p.MeetupLocation)
			upd.MeetupTime = p.MeetupTime
		}
		if edge.Effect == EffectComplete {
			if upd.MeetupLocation == "" || upd.MeetupTime == nil {
				return ErrMissingMeetupDetails
			}
			credit, err = e.completionCredit(ctx, tx, cur)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			upd.Impact = &credit
			upd.CompletedAt = &now
		}

		swapped, err := tx.CompareAndSetSwapStatus(ctx, cur.ID, cur.Status, upd)
		if err != nil {
			return fmt.Errorf("update swap status: %w", err)
		}
		if !swapped {
			return fmt.Errorf("%w: swap %s is no longer %s", ErrInvalidTransition, cur.ID, cur.Status)
		}

		if edge.Effect == EffectComplete {
			initShare, recvShare := ledger.Split(credit)
			if err := ledger.Credit(ctx, tx, cur.InitiatorID, initShare, 1); err != nil {
				return err
			}
			if err := ledger.Credit(ctx, tx, cur.ReceiverID, recvShare, 1); err != nil {
				return err
			}
		}

		sw, err = tx.GetSwap(ctx, cur.ID)
		if err != nil {
			return fmt.Errorf("reload swap: %w", err)
		}
		return nil
	})
	if err != nil {
		e.metrics.Transition(label, resultLabel(err), time.Since(start).Seconds())
		if infraFailure(err) {
			e.log.Error("swap transition failed",
				zap.String("swap_id", swapID),
				zap.String("target", string(target)),
				zap.Error(err))
		}
		return nil, err
	}

	e.metrics.Transition(label, "ok", time.Since(start).Seconds())
	e.log.Info("swap transitioned",
		zap.String("swap_id", sw.ID),
		zap.String("status", string(sw.Status)),
		zap.String("actor_id", actorID))

	bg := context.WithoutCancel(ctx)
	e.applyDerived(bg, sw, edge)
	if edge.Effect == EffectComplete {
		e.metrics.Credited(credit.CO2Saved, credit.WasteReduced)
	}
	e.announce(bg, sw, edge, actorID)
	return sw, nil
}

// completionCredit checks that neither item is consumed by another swap and
// computes the swap's total impact.
func (e *Engine) completionCredit(ctx context.Context, tx *database.Tx, sw *models.Swap) (models.Impact, error) {
	n, err := tx.CountCompletedSwapsWithItems(ctx, sw.ID, sw.InitiatorItemID, sw.ReceiverItemID)
	if err != nil {
		return models.Impact{}, fmt.Errorf("check items: %w", err)
	}
	if n > 0 {
		return models.Impact{}, fmt.Errorf("%w: an item was already swapped", ErrItemUnavailable)
	}

	a, err := tx.GetItem(ctx, sw.InitiatorItemID)
	if err != nil {
		return models.Impact{}, fmt.Errorf("get item: %w", err)
	}
	b, err := tx.GetItem(ctx, sw.ReceiverItemID)
	if err != nil {
		return models.Impact{}, fmt.Errorf("get item: %w", err)
	}
	if a == nil || b == nil {
		return models.Impact{}, fmt.Errorf("%w: item no longer exists", ErrItemUnavailable)
	}
	return impact.SwapCredit(a, b)
}

// applyDerived brings availability and offers in line with sw's status.
// Work still failing when the budget runs out is left for Reconcile.
func (e *Engine) applyDerived(ctx context.Context, sw *models.Swap, edge Edge) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SideEffectBudget)
	defer cancel()
	itemIDs := []string{sw.InitiatorItemID, sw.ReceiverItemID}
	switch edge.Effect {
	case EffectComplete:
		for _, itemID := range itemIDs {
			itemID := itemID
			e.converge(ctx, "mark_unavailable", sw.ID, func(ctx context.Context) error {
				return e.avail.MarkUnavailable(ctx, itemID)
			})
		}
		fallthrough
	case EffectRelease:
		for _, itemID := range itemIDs {
			itemID := itemID
			e.converge(ctx, "clear_offer", sw.ID, func(ctx context.Context) error {
				return e.avail.ClearPendingOffer(ctx, itemID, sw.ID)
			})
		}
	}
}

// converge runs fn until it succeeds, attempts run out or ctx ends,
// doubling the backoff between tries. Anything left over is repaired by
// Reconcile.
func (e *Engine) converge(ctx context.Context, op, swapID string, fn func(context.Context) error) {
	backoff := e.cfg.SideEffectBackoff
	var err error
retry:
	for attempt := 1; attempt <= e.cfg.SideEffectAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = fn(ctx); err == nil {
			return
		}
		if attempt == e.cfg.SideEffectAttempts {
			break
		}
		e.metrics.SideEffectRetry(op)
		e.log.Warn("side effect failed, retrying",
			zap.String("op", op),
			zap.String("swap_id", swapID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			break retry
		case <-t.C:
		}
		backoff *= 2
	}
	e.log.Error("side effect not applied, left for reconcile",
		zap.String("op", op),
		zap.String("swap_id", swapID),
		zap.Error(err))
}

func (e *Engine) announce(ctx context.Context, sw *models.Swap, edge Edge, actorID string) {
	switch edge.Effect {
	case EffectAccept:
		e.notifier.Notify(ctx, models.Notification{
			Recipient:   sw.InitiatorID,
			Sender:      actorID,
			Kind:        models.NotifySwapAccepted,
			Title:       "Swap accepted",
			Body:        "Your swap request was accepted.",
			RelatedItem: sw.InitiatorItemID,
			RelatedSwap: sw.ID,
		})
	case EffectRelease:
		kind, title, body := models.NotifySwapCancelled, "Swap cancelled", "A swap you were part of was cancelled."
		if sw.Status == models.SwapStatusRejected {
			kind, title, body = models.NotifySwapRejected, "Swap declined", "Your swap request was declined."
		}
		recipient := sw.Counterpart(actorID)
		e.notifier.Notify(ctx, models.Notification{
			Recipient:   recipient,
			Sender:      actorID,
			Kind:        kind,
			Title:       title,
			Body:        body,
			RelatedItem: itemOf(sw, recipient),
			RelatedSwap: sw.ID,
		})
	case EffectComplete:
		initShare, recvShare := ledger.Split(sw.Impact)
		shares := map[string]models.Impact{sw.InitiatorID: initShare, sw.ReceiverID: recvShare}
		for _, recipient := range []string{sw.InitiatorID, sw.ReceiverID} {
			e.notifier.Notify(ctx, models.Notification{
				Recipient: recipient,
				Sender:    actorID,
				Kind:      models.NotifySwapCompleted,
				Title:     "Swap completed",
				Body: fmt.Sprintf("Your swap is complete. You saved %.2f kg CO2 and %.2f kg of waste.",
					shares[recipient].CO2Saved, shares[recipient].WasteReduced),
				RelatedItem: itemOf(sw, recipient),
				RelatedSwap: sw.ID,
			})
		}
	}
}

func itemOf(sw *models.Swap, userID string) string {
	if userID == sw.InitiatorID {
		return sw.InitiatorItemID
	}
	return sw.ReceiverItemID
}

// resultLabel names the error class of a failed transition for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidStatus):
		return "invalid_transition"
	case errors.Is(err, ErrMissingMeetupDetails):
		return "missing_meetup"
	case errors.Is(err, ErrItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, database.ErrConflict):
		return "conflict"
	case errors.Is(err, database.ErrTimeout):
		return "timeout"
	}
	return "error"
}

func infraFailure(err error) bool {
	return errors.Is(err, database.ErrConflict) ||
		errors.Is(err, database.ErrTimeout) ||
		errors.Is(err, database.ErrUnavailable)
}
