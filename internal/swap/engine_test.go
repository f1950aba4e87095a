package swap

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/internal/metrics"
	"github.com/jredh-dev/greenswap/pkg/models"
)

type recorder struct {
	mu  sync.Mutex
	got []models.Notification
}

func (r *recorder) Notify(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) to(userID string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.got {
		if n.Recipient == userID {
			out = append(out, n)
		}
	}
	return out
}

// flakyAvailability fails every call while fail is set.
type flakyAvailability struct {
	items.Availability
	fail  atomic.Bool
	calls atomic.Int32
}

var errFlaky = errors.New("availability store down")

func (f *flakyAvailability) check() error {
	f.calls.Add(1)
	if f.fail.Load() {
		return errFlaky
	}
	return nil
}

func (f *flakyAvailability) MarkUnavailable(ctx context.Context, id string) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.Availability.MarkUnavailable(ctx, id)
}

func (f *flakyAvailability) RecordPendingOffer(ctx context.Context, itemID, swapID string) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.Availability.RecordPendingOffer(ctx, itemID, swapID)
}

func (f *flakyAvailability) ClearPendingOffer(ctx context.Context, itemID, swapID string) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.Availability.ClearPendingOffer(ctx, itemID, swapID)
}

type harness struct {
	db      *database.DB
	engine  *Engine
	items   *items.Service
	avail   *flakyAvailability
	notes   *recorder
	metrics *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "swap-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, db.UpsertUser(ctx, id, id))
	}

	log := zaptest.NewLogger(t)
	h := &harness{
		db:      db,
		items:   items.New(db, log),
		avail:   &flakyAvailability{Availability: items.NewStore(db)},
		notes:   &recorder{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.engine = New(db, h.avail, h.notes, log, h.metrics, Config{SideEffectAttempts: 3, SideEffectBackoff: time.Millisecond})
	return h
}

func (h *harness) item(t *testing.T, owner string, cat models.Category, cond models.ItemCondition) *models.Item {
	t.Helper()
	it, err := h.items.Create(context.Background(), owner, items.NewItem{Title: owner + " " + string(cat), Category: cat, Condition: cond})
	require.NoError(t, err)
	return it
}

func (h *harness) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := h.db.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func (h *harness) offers(t *testing.T, itemID string) []string {
	t.Helper()
	ids, err := h.db.ListItemOffers(context.Background(), itemID)
	require.NoError(t, err)
	return ids
}

func meetup() Payload {
	at := time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC)
	return Payload{MeetupLocation: "Central Library", MeetupTime: &at}
}

// pendingSwap sets up alice's new laptop offered for bob's book in good
// condition.
func (h *harness) pendingSwap(t *testing.T) *models.Swap {
	t.Helper()
	laptop := h.item(t, "alice", models.CategoryElectronics, models.ConditionNew)
	book := h.item(t, "bob", models.CategoryBooks, models.ConditionGood)
	sw, err := h.engine.Create(context.Background(), "alice", NewSwap{
		InitiatorItemID: laptop.ID, ReceiverItemID: book.ID, Message: "Trade?",
	})
	require.NoError(t, err)
	return sw
}

func TestEngine_Create(t *testing.T) {
	h := newHarness(t)
	sw := h.pendingSwap(t)

	assert.Equal(t, models.SwapStatusPending, sw.Status)
	assert.Equal(t, "alice", sw.InitiatorID)
	assert.Equal(t, "bob", sw.ReceiverID)
	assert.True(t, sw.Impact.IsZero())

	assert.Equal(t, []string{sw.ID}, h.offers(t, sw.InitiatorItemID))
	assert.Equal(t, []string{sw.ID}, h.offers(t, sw.ReceiverItemID))

	got := h.notes.to("bob")
	require.Len(t, got, 1)
	assert.Equal(t, models.NotifySwapRequest, got[0].Kind)
	assert.Equal(t, sw.ID, got[0].RelatedSwap)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SwapsCreatedTotal))
}

func TestEngine_Create_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.item(t, "alice", models.CategoryToys, models.ConditionGood)
	alsoMine := h.item(t, "alice", models.CategoryBooks, models.ConditionGood)
	theirs := h.item(t, "bob", models.CategoryBooks, models.ConditionGood)

	_, err := h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: theirs.ID, ReceiverItemID: mine.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: mine.ID, ReceiverItemID: alsoMine.ID})
	assert.ErrorIs(t, err, ErrInvalidSwap)

	_, err = h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: mine.ID, ReceiverItemID: mine.ID})
	assert.ErrorIs(t, err, ErrInvalidSwap)

	_, err = h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: mine.ID, ReceiverItemID: "missing"})
	assert.ErrorIs(t, err, items.ErrNotFound)

	require.NoError(t, h.avail.MarkUnavailable(ctx, theirs.ID))
	_, err = h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: mine.ID, ReceiverItemID: theirs.ID})
	assert.ErrorIs(t, err, ErrItemUnavailable)

	swaps, err := h.engine.List(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, swaps)
}

func TestEngine_CompleteScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sw := h.pendingSwap(t)

	sw, err := h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusAccepted, sw.Status)
	require.Len(t, h.notes.to("alice"), 1)
	assert.Equal(t, models.NotifySwapAccepted, h.notes.to("alice")[0].Kind)

	sw, err = h.engine.Transition(ctx, sw.ID, "alice", models.SwapStatusCompleted, meetup())
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusCompleted, sw.Status)
	assert.InDelta(t, 53.5, sw.Impact.CO2Saved, 1e-9)
	assert.InDelta(t, 10.7, sw.Impact.WasteReduced, 1e-9)
	assert.Equal(t, "Central Library", sw.MeetupLocation)
	require.NotNil(t, sw.CompletedAt)

	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	assert.InDelta(t, 26.75, alice.CO2Saved, 1e-9)
	assert.InDelta(t, 26.75, bob.CO2Saved, 1e-9)
	assert.InDelta(t, sw.Impact.WasteReduced, alice.WasteReduced+bob.WasteReduced, 1e-9)
	assert.Equal(t, 1, alice.SwapsCompleted)
	assert.Equal(t, 1, bob.SwapsCompleted)

	for _, id := range []string{sw.InitiatorItemID, sw.ReceiverItemID} {
		ok, err := h.avail.IsAvailable(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "item %s should be retired", id)
		assert.Empty(t, h.offers(t, id))
	}

	for _, user := range []string{"alice", "bob"} {
		var completed int
		for _, n := range h.notes.to(user) {
			if n.Kind == models.NotifySwapCompleted {
				completed++
			}
		}
		assert.Equal(t, 1, completed, "completion notices for %s", user)
	}

	_, err = h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusCompleted, meetup())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	alice, bob = h.user(t, "alice"), h.user(t, "bob")
	assert.InDelta(t, 26.75, alice.CO2Saved, 1e-9)
	assert.InDelta(t, 26.75, bob.CO2Saved, 1e-9)
	assert.Equal(t, 1, alice.SwapsCompleted)
	assert.Equal(t, 1, bob.SwapsCompleted)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TransitionsTotal.WithLabelValues("completed", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TransitionsTotal.WithLabelValues("completed", "invalid_transition")))
	assert.InDelta(t, 53.5, testutil.ToFloat64(h.metrics.CreditedTotal.WithLabelValues("co2_saved")), 1e-9)
}

func TestEngine_Reject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sw := h.pendingSwap(t)

	sw, err := h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusRejected, Payload{})
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusRejected, sw.Status)

	assert.Empty(t, h.offers(t, sw.InitiatorItemID))
	assert.Empty(t, h.offers(t, sw.ReceiverItemID))

	got := h.notes.to("alice")
	require.Len(t, got, 1)
	assert.Equal(t, models.NotifySwapRejected, got[0].Kind)
	assert.Equal(t, "bob", got[0].Sender)

	alice := h.user(t, "alice")
	assert.True(t, alice.Ledger().IsZero())
	assert.Zero(t, alice.SwapsCompleted)

	ok, err := h.avail.IsAvailable(ctx, sw.InitiatorItemID)
	require.NoError(t, err)
	assert.True(t, ok, "rejection never retires items")

	for _, target := range []models.SwapStatus{models.SwapStatusAccepted, models.SwapStatusCancelled, models.SwapStatusCompleted} {
		_, err := h.engine.Transition(ctx, sw.ID, "bob", target, meetup())
		assert.ErrorIs(t, err, ErrInvalidTransition, "rejected -> %s", target)
	}
}

func TestEngine_CancelNotifiesCounterpart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sw := h.pendingSwap(t)

	_, err := h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusAccepted, meetup())
	require.NoError(t, err)
	_, err = h.engine.Transition(ctx, sw.ID, "alice", models.SwapStatusCancelled, Payload{})
	require.NoError(t, err)

	var cancelled []models.Notification
	for _, n := range h.notes.to("bob") {
		if n.Kind == models.NotifySwapCancelled {
			cancelled = append(cancelled, n)
		}
	}
	require.Len(t, cancelled, 1)
	assert.Equal(t, sw.ReceiverItemID, cancelled[0].RelatedItem)
	assert.Empty(t, h.offers(t, sw.ReceiverItemID))
}

func TestEngine_TransitionErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sw := h.pendingSwap(t)

	_, err := h.engine.Transition(ctx, "missing", "alice", models.SwapStatusAccepted, Payload{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.engine.Transition(ctx, sw.ID, "carol", models.SwapStatusCancelled, Payload{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.engine.Transition(ctx, sw.ID, "alice", models.SwapStatusAccepted, Payload{})
	assert.ErrorIs(t, err, ErrForbidden, "initiator cannot accept")

	_, err = h.engine.Transition(ctx, sw.ID, "alice", models.SwapStatusCompleted, meetup())
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending cannot skip to completed")

	_, err = h.engine.Transition(ctx, sw.ID, "bob", "archived", Payload{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Unknown targets are still checked in lookup, participant, edge order.
	_, err = h.engine.Transition(ctx, "missing", "alice", "archived", Payload{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.engine.Transition(ctx, sw.ID, "carol", "archived", Payload{})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TransitionsTotal.WithLabelValues("unknown", "invalid_transition")))

	_, err = h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)

	_, err = h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusCompleted, Payload{MeetupLocation: "Park"})
	assert.ErrorIs(t, err, ErrMissingMeetupDetails)

	got, err := h.engine.Get(ctx, "bob", sw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusAccepted, got.Status)
	assert.True(t, got.Impact.IsZero())
	assert.Zero(t, h.user(t, "bob").SwapsCompleted)
}

func TestEngine_ConcurrentComplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sw := h.pendingSwap(t)
	_, err := h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)

	const callers = 8
	var wins, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		actor := "alice"
		if i%2 == 1 {
			actor = "bob"
		}
		g.Go(func() error {
			_, err := h.engine.Transition(ctx, sw.ID, actor, models.SwapStatusCompleted, meetup())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidTransition):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(callers-1), lost.Load())

	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	assert.Equal(t, 1, alice.SwapsCompleted)
	assert.Equal(t, 1, bob.SwapsCompleted)
	assert.InDelta(t, 53.5, alice.CO2Saved+bob.CO2Saved, 1e-9)
}

func TestEngine_ItemConsumedByAnotherSwap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	laptop := h.item(t, "alice", models.CategoryElectronics, models.ConditionNew)
	book := h.item(t, "bob", models.CategoryBooks, models.ConditionGood)
	chair := h.item(t, "carol", models.CategoryFurniture, models.ConditionFair)

	first, err := h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: laptop.ID, ReceiverItemID: book.ID})
	require.NoError(t, err)
	second, err := h.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: laptop.ID, ReceiverItemID: chair.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, h.offers(t, laptop.ID))

	_, err = h.engine.Transition(ctx, first.ID, "bob", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)
	_, err = h.engine.Transition(ctx, second.ID, "carol", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)

	_, err = h.engine.Transition(ctx, first.ID, "bob", models.SwapStatusCompleted, meetup())
	require.NoError(t, err)

	_, err = h.engine.Transition(ctx, second.ID, "carol", models.SwapStatusCompleted, meetup())
	assert.ErrorIs(t, err, ErrItemUnavailable)
	assert.Zero(t, h.user(t, "carol").SwapsCompleted)

	// The losing swap can still be cancelled, which releases its offers.
	_, err = h.engine.Transition(ctx, second.ID, "carol", models.SwapStatusCancelled, Payload{})
	require.NoError(t, err)
	assert.Empty(t, h.offers(t, laptop.ID))
	assert.Empty(t, h.offers(t, chair.ID))
}

func TestEngine_Reconcile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sw := h.pendingSwap(t)
	for _, id := range []string{sw.InitiatorItemID, sw.ReceiverItemID} {
		require.NoError(t, h.db.RemoveItemOffer(ctx, id, sw.ID))
	}

	rep, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{OffersRecorded: 2}, rep)
	assert.Equal(t, []string{sw.ID}, h.offers(t, sw.InitiatorItemID))
	assert.Equal(t, []string{sw.ID}, h.offers(t, sw.ReceiverItemID))

	_, err = h.engine.Transition(ctx, sw.ID, "bob", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)

	h.avail.fail.Store(true)
	_, err = h.engine.Transition(ctx, sw.ID, "alice", models.SwapStatusCompleted, meetup())
	require.NoError(t, err, "derived state failures never fail the transition")
	assert.Equal(t, 1, h.user(t, "alice").SwapsCompleted)

	ok, err := h.avail.IsAvailable(ctx, sw.InitiatorItemID)
	require.NoError(t, err)
	assert.True(t, ok, "retirement has not converged yet")

	h.avail.fail.Store(false)
	rep, err = h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{ItemsRetired: 2, OffersCleared: 2}, rep)

	ok, err = h.avail.IsAvailable(ctx, sw.InitiatorItemID)
	require.NoError(t, err)
	assert.False(t, ok)

	rep, err = h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)
}

func TestEngine_QueriesRequireParticipant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sw := h.pendingSwap(t)

	_, err := h.engine.Get(ctx, "carol", sw.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.engine.Impact(ctx, "carol", sw.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	imp, err := h.engine.Impact(ctx, "alice", sw.ID)
	require.NoError(t, err)
	assert.True(t, imp.IsZero())

	pending, err := h.engine.List(ctx, "bob", models.SwapStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	done, err := h.engine.List(ctx, "bob", models.SwapStatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, done)

	_, err = h.engine.List(ctx, "bob", "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// rejectOnRequest declines every swap request the moment its notice goes
// out, before Create has returned.
type rejectOnRequest struct {
	*recorder
	engine *Engine
	err    error
}

func (r *rejectOnRequest) Notify(ctx context.Context, n models.Notification) {
	r.recorder.Notify(ctx, n)
	if n.Kind == models.NotifySwapRequest {
		_, r.err = r.engine.Transition(ctx, n.RelatedSwap, n.Recipient, models.SwapStatusRejected, Payload{})
	}
}

func TestEngine_Create_OffersCommitWithSwap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.avail.fail.Store(true)
	sw := h.pendingSwap(t)
	assert.Equal(t, []string{sw.ID}, h.offers(t, sw.InitiatorItemID))
	assert.Equal(t, []string{sw.ID}, h.offers(t, sw.ReceiverItemID))
	assert.Zero(t, h.avail.calls.Load(), "creation does not depend on the availability store")

	h.avail.fail.Store(false)
	rep, err := h.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)
}

func TestEngine_RejectBeforeCreateReturns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hook := &rejectOnRequest{recorder: h.notes}
	hook.engine = New(h.db, h.avail, hook, zaptest.NewLogger(t), h.metrics, Config{SideEffectAttempts: 3, SideEffectBackoff: time.Millisecond})

	laptop := h.item(t, "alice", models.CategoryElectronics, models.ConditionNew)
	book := h.item(t, "bob", models.CategoryBooks, models.ConditionGood)
	sw, err := hook.engine.Create(ctx, "alice", NewSwap{InitiatorItemID: laptop.ID, ReceiverItemID: book.ID})
	require.NoError(t, err)
	require.NoError(t, hook.err)

	got, err := hook.engine.Get(ctx, "alice", sw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusRejected, got.Status)
	assert.Empty(t, h.offers(t, laptop.ID))
	assert.Empty(t, h.offers(t, book.ID))

	rep, err := hook.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)
}

func TestEngine_SideEffectBudgetBoundsTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	engine := New(h.db, h.avail, h.notes, zaptest.NewLogger(t), h.metrics, Config{
		SideEffectAttempts: 50,
		SideEffectBackoff:  20 * time.Millisecond,
		SideEffectBudget:   50 * time.Millisecond,
	})

	sw := h.pendingSwap(t)
	_, err := engine.Transition(ctx, sw.ID, "bob", models.SwapStatusAccepted, Payload{})
	require.NoError(t, err)

	h.avail.fail.Store(true)
	start := time.Now()
	_, err = engine.Transition(ctx, sw.ID, "alice", models.SwapStatusCompleted, meetup())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, h.user(t, "alice").SwapsCompleted)

	h.avail.fail.Store(false)
	rep, err := engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{ItemsRetired: 2, OffersCleared: 2}, rep)
}
