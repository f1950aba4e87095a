package swap

import (
	"sort"

	"github.com/jredh-dev/greenswap/pkg/models"
)

// Actor says which participant may take an edge.
type Actor int

const (
	ActorReceiver Actor = iota
	ActorEither
)

// Effect is the work an edge triggers beyond the status write.
type Effect int

const (
	// EffectAccept notifies the initiator.
	EffectAccept Effect = iota
	// EffectRelease clears both pending offers and notifies the counterpart.
	EffectRelease
	// EffectComplete computes and credits impact, retires both items and
	// notifies both participants.
	EffectComplete
)

// Edge is one legal status change.
type Edge struct {
	From   models.SwapStatus
	To     models.SwapStatus
	Actor  Actor
	Effect Effect
}

// Permits reports whether actorID may take the edge on sw.
func (e Edge) Permits(sw *models.Swap, actorID string) bool {
	switch e.Actor {
	case ActorReceiver:
		return actorID == sw.ReceiverID
	case ActorEither:
		return sw.IsParticipant(actorID)
	}
	return false
}

var edges = []Edge{
	{models.SwapStatusPending, models.SwapStatusAccepted, ActorReceiver, EffectAccept},
	{models.SwapStatusPending, models.SwapStatusRejected, ActorReceiver, EffectRelease},
	{models.SwapStatusPending, models.SwapStatusCancelled, ActorEither, EffectRelease},
	{models.SwapStatusAccepted, models.SwapStatusCompleted, ActorEither, EffectComplete},
	{models.SwapStatusAccepted, models.SwapStatusCancelled, ActorEither, EffectRelease},
}

var table = func() map[models.SwapStatus]map[models.SwapStatus]Edge {
	t := make(map[models.SwapStatus]map[models.SwapStatus]Edge)
	for _, e := range edges {
		if t[e.From] == nil {
			t[e.From] = make(map[models.SwapStatus]Edge)
		}
		t[e.From][e.To] = e
	}
	return t
}()

// Lookup returns the edge from -> to, if there is one.
func Lookup(from, to models.SwapStatus) (Edge, bool) {
	e, ok := table[from][to]
	return e, ok
}

// Successors lists the statuses reachable from `from` in one step, sorted.
// Terminal statuses have none.
func Successors(from models.SwapStatus) []models.SwapStatus {
	out := make([]models.SwapStatus, 0, len(table[from]))
	for to := range table[from] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
