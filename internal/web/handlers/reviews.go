package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

// SubmitReview records the caller's review of a completed swap.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	rev, err := h.reviews.Submit(r.Context(), chi.URLParam(r, "id"), caller(r).ID, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusCreated, rev)
}

// UpdateReview edits one of the caller's reviews.
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	rev, err := h.reviews.Update(r.Context(), chi.URLParam(r, "id"), caller(r).ID, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, rev)
}

// ListReviews returns a swap's reviews by direction.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	out, err := h.reviews.ListForSwap(r.Context(), chi.URLParam(r, "id"), caller(r).ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, out)
}
