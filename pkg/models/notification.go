package models

import "time"

// NotificationKind classifies notification events.
type NotificationKind string

const (
	NotifySwapRequest   NotificationKind = "swap_request"
	NotifySwapAccepted  NotificationKind = "swap_accepted"
	NotifySwapRejected  NotificationKind = "swap_rejected"
	NotifySwapCancelled NotificationKind = "swap_cancelled"
	NotifySwapCompleted NotificationKind = "swap_completed"
	NotifyNewReview     NotificationKind = "new_review"
)

// Notification is a fire-and-forget event record for the external dispatcher.
type Notification struct {
	ID          string           `json:"id"`
	Recipient   string           `json:"recipient"`
	Sender      string           `json:"sender,omitempty"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	RelatedItem string           `json:"related_item,omitempty"`
	RelatedSwap string           `json:"related_swap,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
