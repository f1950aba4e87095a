package review

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrSwapNotCompleted = errors.New("swap is not completed")
	ErrNotParticipant   = errors.New("not a participant in this swap")
	ErrDuplicateReview  = errors.New("swap already reviewed by this user")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
)
