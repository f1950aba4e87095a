package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/ledger"
	"github.com/jredh-dev/greenswap/pkg/identity"
)

type exchangeRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type exchangeResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// ExchangeToken trades a Firebase ID token for a service token.
func (h *Handler) ExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	tok, claims, err := h.tokens.Exchange(r.Context(), req.IDToken)
	if err != nil {
		h.fail(w, err)
		return
	}
	username := identity.NormalizeUsername(claims.Username)
	if err := h.db.UpsertUser(r.Context(), claims.UserID, username); err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("token exchanged", zap.String("user_id", claims.UserID))
	h.jsonResponse(w, http.StatusOK, exchangeResponse{Token: tok, UserID: claims.UserID, Username: username})
}

// UserImpact returns a user's ledger totals.
func (h *Handler) UserImpact(w http.ResponseWriter, r *http.Request) {
	h.writeTotals(w, r, chi.URLParam(r, "id"))
}

// MyImpact returns the caller's ledger totals.
func (h *Handler) MyImpact(w http.ResponseWriter, r *http.Request) {
	h.writeTotals(w, r, caller(r).ID)
}

func (h *Handler) writeTotals(w http.ResponseWriter, r *http.Request, userID string) {
	totals, found, err := ledger.Get(r.Context(), h.db, userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !found {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, http.StatusOK, totals)
}
