// Package review handles ratings participants leave each other after a
// completed swap, and the per-user rating aggregate they feed.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/metrics"
	"github.com/jredh-dev/greenswap/internal/notify"
	"github.com/jredh-dev/greenswap/pkg/models"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Service handles review operations.
type Service struct {
	db       *database.DB
	notifier notify.Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a review service. A nil notifier discards notifications.
func New(db *database.DB, notifier notify.Notifier, log *zap.Logger, m *metrics.Metrics) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{db: db, notifier: notifier, log: log, metrics: m}
}

// Submit records reviewerID's rating of the other participant in a
// completed swap and refreshes the reviewee's aggregate.
func (s *Service) Submit(ctx context.Context, swapID, reviewerID string, rating int, comment string) (*models.Review, error) {
	if err := checkRating(rating); err != nil {
		s.metrics.Review("submit", "invalid")
		return nil, err
	}

	var rev *models.Review
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		sw, err := tx.GetSwap(ctx, swapID)
		if err != nil {
			return fmt.Errorf("get swap: %w", err)
		}
		if sw == nil {
			return fmt.Errorf("%w: swap %s", ErrNotFound, swapID)
		}
		if sw.Status != models.SwapStatusCompleted {
			return ErrSwapNotCompleted
		}
		if !sw.IsParticipant(reviewerID) {
			return ErrNotParticipant
		}
		existing, err := tx.GetReviewBySwapAndReviewer(ctx, swapID, reviewerID)
		if err != nil {
			return fmt.Errorf("get review: %w", err)
		}
		if existing != nil {
			return ErrDuplicateReview
		}

		now := time.Now().UTC()
		rev = &models.Review{
			ID:         uuid.New().String(),
			SwapID:     sw.ID,
			ReviewerID: reviewerID,
			RevieweeID: sw.Counterpart(reviewerID),
			Direction:  directionOf(sw, reviewerID),
			Rating:     rating,
			Comment:    strings.TrimSpace(comment),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateReview(ctx, rev); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return ErrDuplicateReview
			}
			return fmt.Errorf("create review: %w", err)
		}
		return refreshRating(ctx, tx, rev.RevieweeID)
	})
	if err != nil {
		s.metrics.Review("submit", resultLabel(err))
		return nil, err
	}

	s.metrics.Review("submit", "ok")
	s.log.Info("review submitted",
		zap.String("review_id", rev.ID),
		zap.String("swap_id", rev.SwapID),
		zap.String("reviewee_id", rev.RevieweeID),
		zap.Int("rating", rev.Rating))

	s.notifier.Notify(context.WithoutCancel(ctx), models.Notification{
		Recipient:   rev.RevieweeID,
		Sender:      rev.ReviewerID,
		Kind:        models.NotifyNewReview,
		Title:       "New review",
		Body:        fmt.Sprintf("You received a %d-star review.", rev.Rating),
		RelatedSwap: rev.SwapID,
	})
	return rev, nil
}

// Update changes the rating and comment of a review. Only the original
// reviewer may edit it.
func (s *Service) Update(ctx context.Context, reviewID, actorID string, rating int, comment string) (*models.Review, error) {
	if err := checkRating(rating); err != nil {
		s.metrics.Review("update", "invalid")
		return nil, err
	}

	var rev *models.Review
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		rev, err = tx.GetReview(ctx, reviewID)
		if err != nil {
			return fmt.Errorf("get review: %w", err)
		}
		if rev == nil {
			return fmt.Errorf("%w: review %s", ErrNotFound, reviewID)
		}
		if rev.ReviewerID != actorID {
			return ErrForbidden
		}

		rev.Rating = rating
		rev.Comment = strings.TrimSpace(comment)
		rev.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateReview(ctx, rev); err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		return refreshRating(ctx, tx, rev.RevieweeID)
	})
	if err != nil {
		s.metrics.Review("update", resultLabel(err))
		return nil, err
	}

	s.metrics.Review("update", "ok")
	s.log.Info("review updated",
		zap.String("review_id", rev.ID),
		zap.String("reviewee_id", rev.RevieweeID),
		zap.Int("rating", rev.Rating))
	return rev, nil
}

// ListForSwap returns a swap's reviews by direction. Only participants may
// read them.
func (s *Service) ListForSwap(ctx context.Context, swapID, actorID string) (models.SwapReviews, error) {
	var out models.SwapReviews
	sw, err := s.db.GetSwap(ctx, swapID)
	if err != nil {
		return out, fmt.Errorf("get swap: %w", err)
	}
	if sw == nil {
		return out, fmt.Errorf("%w: swap %s", ErrNotFound, swapID)
	}
	if !sw.IsParticipant(actorID) {
		return out, ErrNotParticipant
	}

	reviews, err := s.db.ListReviewsBySwap(ctx, swapID)
	if err != nil {
		return out, fmt.Errorf("list reviews: %w", err)
	}
	for i := range reviews {
		r := reviews[i]
		switch r.Direction {
		case models.DirectionInitiatorToReceiver:
			out.InitiatorToReceiver = &r
		case models.DirectionReceiverToInitiator:
			out.ReceiverToInitiator = &r
		}
	}
	return out, nil
}

// Summarize computes the rating aggregate from a sum and count of ratings.
func Summarize(sum, count int) models.RatingSummary {
	if count == 0 {
		return models.RatingSummary{}
	}
	return models.RatingSummary{Average: float64(sum) / float64(count), Count: count}
}

// refreshRating recomputes a user's aggregate over every review they have
// received. It runs in the caller's write transaction, which serializes
// concurrent refreshes for the same user.
func refreshRating(ctx context.Context, tx *database.Tx, userID string) error {
	sum, count, err := tx.RatingTotals(ctx, userID)
	if err != nil {
		return fmt.Errorf("rating totals: %w", err)
	}
	if err := tx.SetUserRating(ctx, userID, Summarize(sum, count)); err != nil {
		return fmt.Errorf("set rating: %w", err)
	}
	return nil
}

func checkRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	return nil
}

func directionOf(sw *models.Swap, reviewerID string) models.ReviewDirection {
	if reviewerID == sw.InitiatorID {
		return models.DirectionInitiatorToReceiver
	}
	return models.DirectionReceiverToInitiator
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateReview):
		return "duplicate"
	case errors.Is(err, ErrSwapNotCompleted), errors.Is(err, ErrNotParticipant), errors.Is(err, ErrForbidden):
		return "denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
