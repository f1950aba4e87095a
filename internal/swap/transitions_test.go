package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jredh-dev/greenswap/pkg/models"
)

var allStatuses = []models.SwapStatus{
	models.SwapStatusPending,
	models.SwapStatusAccepted,
	models.SwapStatusRejected,
	models.SwapStatusCompleted,
	models.SwapStatusCancelled,
}

func TestSuccessors(t *testing.T) {
	tests := []struct {
		from models.SwapStatus
		want []models.SwapStatus
	}{
		{models.SwapStatusPending, []models.SwapStatus{models.SwapStatusAccepted, models.SwapStatusCancelled, models.SwapStatusRejected}},
		{models.SwapStatusAccepted, []models.SwapStatus{models.SwapStatusCancelled, models.SwapStatusCompleted}},
		{models.SwapStatusRejected, []models.SwapStatus{}},
		{models.SwapStatusCompleted, []models.SwapStatus{}},
		{models.SwapStatusCancelled, []models.SwapStatus{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			assert.Equal(t, tt.want, Successors(tt.from))
		})
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			_, ok := Lookup(from, to)
			if from.Terminal() {
				assert.False(t, ok, "%s -> %s", from, to)
			}
		}
	}
}

func TestPendingCannotSkipToCompleted(t *testing.T) {
	_, ok := Lookup(models.SwapStatusPending, models.SwapStatusCompleted)
	assert.False(t, ok)
}

func TestEdge_Permits(t *testing.T) {
	sw := &models.Swap{InitiatorID: "alice", ReceiverID: "bob"}

	tests := []struct {
		to    models.SwapStatus
		from  models.SwapStatus
		actor string
		want  bool
	}{
		{models.SwapStatusAccepted, models.SwapStatusPending, "bob", true},
		{models.SwapStatusAccepted, models.SwapStatusPending, "alice", false},
		{models.SwapStatusRejected, models.SwapStatusPending, "alice", false},
		{models.SwapStatusCancelled, models.SwapStatusPending, "alice", true},
		{models.SwapStatusCancelled, models.SwapStatusAccepted, "bob", true},
		{models.SwapStatusCompleted, models.SwapStatusAccepted, "alice", true},
		{models.SwapStatusCompleted, models.SwapStatusAccepted, "bob", true},
		{models.SwapStatusCompleted, models.SwapStatusAccepted, "carol", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to)+"/"+tt.actor, func(t *testing.T) {
			e, ok := Lookup(tt.from, tt.to)
			assert.True(t, ok)
			assert.Equal(t, tt.want, e.Permits(sw, tt.actor))
		})
	}
}

func TestEdges_Effects(t *testing.T) {
	effects := map[models.SwapStatus]Effect{
		models.SwapStatusAccepted:  EffectAccept,
		models.SwapStatusRejected:  EffectRelease,
		models.SwapStatusCancelled: EffectRelease,
		models.SwapStatusCompleted: EffectComplete,
	}
	for _, e := range edges {
		assert.Equal(t, effects[e.To], e.Effect, "%s -> %s", e.From, e.To)
	}
}
