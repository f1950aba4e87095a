package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/impact"
	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/internal/review"
	"github.com/jredh-dev/greenswap/internal/swap"
	"github.com/jredh-dev/greenswap/internal/token"
)

var errBadRequest = errors.New("invalid request body")

type fieldError struct {
	field string
	tag   string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("field %s failed %q", e.field, e.tag)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fieldError
	switch {
	case errors.Is(err, errBadRequest), errors.As(err, &fe):
		return http.StatusBadRequest
	case errors.Is(err, token.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, token.ErrFirebaseDisabled):
		return http.StatusNotImplemented

	case errors.Is(err, items.ErrNotFound),
		errors.Is(err, swap.ErrNotFound),
		errors.Is(err, review.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, items.ErrForbidden),
		errors.Is(err, swap.ErrForbidden),
		errors.Is(err, review.ErrForbidden),
		errors.Is(err, review.ErrNotParticipant):
		return http.StatusForbidden

	case errors.Is(err, swap.ErrInvalidTransition),
		errors.Is(err, swap.ErrItemUnavailable),
		errors.Is(err, review.ErrDuplicateReview),
		errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, swap.ErrMissingMeetupDetails),
		errors.Is(err, swap.ErrInvalidSwap),
		errors.Is(err, swap.ErrInvalidStatus),
		errors.Is(err, review.ErrSwapNotCompleted),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, impact.ErrInvalidCategory),
		errors.Is(err, impact.ErrInvalidCondition),
		errors.Is(err, items.ErrInvalidInput):
		return http.StatusUnprocessableEntity

	case errors.Is(err, database.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, database.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error. Server-side failures are logged and
// their detail is withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Int("status", status), zap.Error(err))
		jsonError(w, http.StatusText(status), status)
		return
	}
	jsonError(w, err.Error(), status)
}
