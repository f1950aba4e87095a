package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/pkg/models"
)

type createItemRequest struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=2000"`
	Category    models.Category      `json:"category" validate:"required"`
	Condition   models.ItemCondition `json:"condition" validate:"required"`
}

type updateItemRequest struct {
	Title       *string               `json:"title" validate:"omitempty,max=200"`
	Description *string               `json:"description" validate:"omitempty,max=2000"`
	Category    *models.Category      `json:"category"`
	Condition   *models.ItemCondition `json:"condition"`
}

// CreateItem lists a new item for the caller.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	item, err := h.items.Create(r.Context(), caller(r).ID, items.NewItem{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusCreated, item)
}

// ListItems returns the items of ?owner=, defaulting to the caller.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = caller(r).ID
	}
	list, err := h.items.ListByOwner(r.Context(), owner)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, list)
}

// GetItem returns one item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, item)
}

// UpdateItem edits an item the caller owns.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	item, err := h.items.Update(r.Context(), caller(r).ID, chi.URLParam(r, "id"), items.Patch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, item)
}
