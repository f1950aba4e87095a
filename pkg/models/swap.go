package models

import "time"

// SwapStatus represents the lifecycle state of a swap.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusCancelled SwapStatus = "cancelled"
)

// Terminal reports whether no transitions leave this status.
func (s SwapStatus) Terminal() bool {
	switch s {
	case SwapStatusRejected, SwapStatusCompleted, SwapStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapStatusPending, SwapStatusAccepted, SwapStatusRejected, SwapStatusCompleted, SwapStatusCancelled:
		return true
	}
	return false
}

// Swap is a proposed exchange of two items between two users.
type Swap struct {
	ID              string     `json:"id"`
	InitiatorID     string     `json:"initiator_id"`
	ReceiverID      string     `json:"receiver_id"`
	InitiatorItemID string     `json:"initiator_item_id"`
	ReceiverItemID  string     `json:"receiver_item_id"`
	Status          SwapStatus `json:"status"`
	Message         string     `json:"message"`
	MeetupLocation  string     `json:"meetup_location,omitempty"`
	MeetupTime      *time.Time `json:"meetup_time,omitempty"`
	Impact          Impact     `json:"environmental_impact"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// IsParticipant reports whether userID is the initiator or the receiver.
func (s *Swap) IsParticipant(userID string) bool {
	return userID != "" && (userID == s.InitiatorID || userID == s.ReceiverID)
}

// Counterpart returns the other participant, or "" if userID is not one.
func (s *Swap) Counterpart(userID string) string {
	switch userID {
	case s.InitiatorID:
		return s.ReceiverID
	case s.ReceiverID:
		return s.InitiatorID
	}
	return ""
}
