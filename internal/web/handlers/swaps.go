package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/greenswap/internal/swap"
	"github.com/jredh-dev/greenswap/pkg/models"
)

type createSwapRequest struct {
	InitiatorItemID string `json:"initiator_item_id" validate:"required"`
	ReceiverItemID  string `json:"receiver_item_id" validate:"required"`
	Message         string `json:"message" validate:"max=1000"`
}

type transitionRequest struct {
	Status         models.SwapStatus `json:"status" validate:"required"`
	MeetupLocation string            `json:"meetup_location" validate:"max=500"`
	MeetupTime     *time.Time        `json:"meetup_time"`
}

// CreateSwap proposes a swap from the caller.
func (h *Handler) CreateSwap(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	sw, err := h.swaps.Create(r.Context(), caller(r).ID, swap.NewSwap{
		InitiatorItemID: req.InitiatorItemID,
		ReceiverItemID:  req.ReceiverItemID,
		Message:         req.Message,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusCreated, sw)
}

// ListSwaps returns the caller's swaps, optionally filtered by ?status=.
func (h *Handler) ListSwaps(w http.ResponseWriter, r *http.Request) {
	status := models.SwapStatus(r.URL.Query().Get("status"))
	list, err := h.swaps.List(r.Context(), caller(r).ID, status)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, list)
}

// GetSwap returns a swap the caller participates in.
func (h *Handler) GetSwap(w http.ResponseWriter, r *http.Request) {
	sw, err := h.swaps.Get(r.Context(), caller(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, sw)
}

// TransitionSwap changes a swap's status.
func (h *Handler) TransitionSwap(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	sw, err := h.swaps.Transition(r.Context(), chi.URLParam(r, "id"), caller(r).ID, req.Status, swap.Payload{
		MeetupLocation: req.MeetupLocation,
		MeetupTime:     req.MeetupTime,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, sw)
}

// SwapImpact returns the stored impact of a swap.
func (h *Handler) SwapImpact(w http.ResponseWriter, r *http.Request) {
	imp, err := h.swaps.Impact(r.Context(), caller(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, imp)
}
