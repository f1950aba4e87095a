package models

import "time"

// ReviewDirection identifies which participant wrote a review.
type ReviewDirection string

const (
	DirectionInitiatorToReceiver ReviewDirection = "initiator_to_receiver"
	DirectionReceiverToInitiator ReviewDirection = "receiver_to_initiator"
)

// Review is one participant's rating of the other after a completed swap.
type Review struct {
	ID         string          `json:"id"`
	SwapID     string          `json:"swap_id"`
	ReviewerID string          `json:"reviewer_id"`
	RevieweeID string          `json:"reviewee_id"`
	Direction  ReviewDirection `json:"direction"`
	Rating     int             `json:"rating"`
	Comment    string          `json:"comment"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SwapReviews holds at most one review per direction for a swap.
type SwapReviews struct {
	InitiatorToReceiver *Review `json:"initiator_to_receiver,omitempty"`
	ReceiverToInitiator *Review `json:"receiver_to_initiator,omitempty"`
}

// RatingSummary is the aggregate rating a user has received.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
