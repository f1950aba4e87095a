// Package handlers exposes the swap service as a JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/internal/review"
	"github.com/jredh-dev/greenswap/internal/swap"
	"github.com/jredh-dev/greenswap/internal/token"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	db      *database.DB
	items   *items.Service
	swaps   *swap.Engine
	reviews *review.Service
	tokens  *token.Service
	log     *zap.Logger
}

// New creates a new handler set.
func New(db *database.DB, itemSvc *items.Service, swaps *swap.Engine, reviews *review.Service, tokens *token.Service, log *zap.Logger) *Handler {
	return &Handler{db: db, items: itemSvc, swaps: swaps, reviews: reviews, tokens: tokens, log: log}
}

var validate = validator.New()

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/exchange", h.ExchangeToken)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(h.tokens, h.db, h.log))

		r.Post("/items", h.CreateItem)
		r.Get("/items", h.ListItems)
		r.Get("/items/{id}", h.GetItem)
		r.Patch("/items/{id}", h.UpdateItem)

		r.Post("/swaps", h.CreateSwap)
		r.Get("/swaps", h.ListSwaps)
		r.Get("/swaps/{id}", h.GetSwap)
		r.Post("/swaps/{id}/status", h.TransitionSwap)
		r.Get("/swaps/{id}/impact", h.SwapImpact)
		r.Get("/swaps/{id}/reviews", h.ListReviews)
		r.Post("/swaps/{id}/reviews", h.SubmitReview)

		r.Patch("/reviews/{id}", h.UpdateReview)

		r.Get("/users/{id}/impact", h.UserImpact)
		r.Get("/me/impact", h.MyImpact)
	})
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequest
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &fieldError{field: verrs[0].Field(), tag: verrs[0].Tag()}
		}
		return errBadRequest
	}
	return nil
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("encode JSON response", zap.Error(err))
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
