package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role enumerates the access levels a user account can hold.
type Role string

const (
	// RoleUser is the default role granted on signup.
	RoleUser Role = "USER"
	// RoleAdmin grants access to user-management endpoints.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is the request-scoped identity resolved by the authentication
// gate. It lives only in the request context, never in shared state.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
