package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jredh-dev/greenswap/internal/token"
	"github.com/jredh-dev/greenswap/pkg/identity"
)

// userUpserter records callers so their ledger row exists before any
// swap or review touches it.
type userUpserter interface {
	UpsertUser(ctx context.Context, id, username string) error
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// identity in the request context.
func AuthMiddleware(tokens *token.Service, users userUpserter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				jsonError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.ValidateToken(raw)
			if err != nil {
				jsonError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			id := identity.Identity{ID: claims.UserID, Username: identity.NormalizeUsername(claims.Username)}
			if err := users.UpsertUser(r.Context(), id.ID, id.Username); err != nil {
				log.Error("upsert user", zap.String("user_id", id.ID), zap.Error(err))
				jsonError(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// caller returns the identity set by AuthMiddleware.
func caller(r *http.Request) identity.Identity {
	id, _ := identity.FromContext(r.Context())
	return id
}
