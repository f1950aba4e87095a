package swap

import "errors"

var (
	ErrNotFound             = errors.New("swap not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrMissingMeetupDetails = errors.New("meetup location and time are required")
	ErrItemUnavailable      = errors.New("item unavailable")
	ErrInvalidSwap          = errors.New("invalid swap")
	ErrInvalidStatus        = errors.New("unknown swap status")
)
