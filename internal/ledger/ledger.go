// Package ledger maintains per-user running totals of impact credit and
// completed swaps. Totals only grow, and only through Credit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jredh-dev/greenswap/pkg/models"
)

var (
	ErrNegativeCredit = errors.New("ledger credit must not be negative")
	ErrUnknownUser    = errors.New("ledger user not found")
)

// Writer is the persistence surface Credit needs. It is implemented by
// *database.Tx so credits commit or roll back with the swap transition.
type Writer interface {
	CreditUser(ctx context.Context, id string, delta models.Impact, swaps int) (bool, error)
}

// Reader loads a user's stored totals.
type Reader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Totals is a user's ledger as exposed to callers.
type Totals struct {
	UserID         string               `json:"user_id"`
	Username       string               `json:"username"`
	CO2Saved       float64              `json:"co2_saved"`
	WasteReduced   float64              `json:"waste_reduced"`
	SwapsCompleted int                  `json:"swaps_completed"`
	Rating         models.RatingSummary `json:"rating"`
}

// Credit adds delta and swaps to a user's ledger.
func Credit(ctx context.Context, w Writer, userID string, delta models.Impact, swaps int) error {
	if delta.CO2Saved < 0 || delta.WasteReduced < 0 || swaps < 0 {
		return ErrNegativeCredit
	}
	ok, err := w.CreditUser(ctx, userID, delta, swaps)
	if err != nil {
		return fmt.Errorf("credit user %s: %w", userID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return nil
}

// Split divides a swap's total impact between its two participants. The
// initiator's share absorbs any rounding remainder so the two shares always
// sum to the total.
func Split(total models.Impact) (initiator, receiver models.Impact) {
	receiver = models.Impact{
		CO2Saved:     half(total.CO2Saved),
		WasteReduced: half(total.WasteReduced),
	}
	initiator = models.Impact{
		CO2Saved:     total.CO2Saved - receiver.CO2Saved,
		WasteReduced: total.WasteReduced - receiver.WasteReduced,
	}
	return initiator, receiver
}

// Get returns a user's totals. found is false if the user does not exist.
func Get(ctx context.Context, r Reader, userID string) (t Totals, found bool, err error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return Totals{}, false, err
	}
	if u == nil {
		return Totals{}, false, nil
	}
	return Totals{
		UserID:         u.ID,
		Username:       u.Username,
		CO2Saved:       u.CO2Saved,
		WasteReduced:   u.WasteReduced,
		SwapsCompleted: u.SwapsCompleted,
		Rating:         models.RatingSummary{Average: u.RatingAverage, Count: u.RatingCount},
	}, true, nil
}

// half rounds to four decimals so shares of two-decimal totals stay exact.
func half(v float64) float64 {
	return math.Round(v/2*10000) / 10000
}
