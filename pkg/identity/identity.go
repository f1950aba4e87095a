// Package identity carries the authenticated caller through a request
// context. Authentication itself happens upstream; handlers and services
// only ever see the resolved Identity.
package identity

import (
	"context"
	"strings"
)

// Identity is the authenticated user making a request.
type Identity struct {
	ID       string
	Username string
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx.
// ok is false when no identity is present or its ID is blank.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || strings.TrimSpace(id.ID) == "" {
		return Identity{}, false
	}
	return id, true
}

// NormalizeUsername lowercases and trims a username so lookups are
// case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
