package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role names the acting user's role as resolved by the authentication layer.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// Scope carries the authenticated tenant context a request acts under.
// It is resolved upstream; this package only transports it.
type Scope struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     Role
	AreaID   *uuid.UUID
}

// MayCreateAreas reports whether the role is allowed to create areas
// referenced by imported rows.
func (s Scope) MayCreateAreas() bool {
	return s.Role == RoleAdmin
}

// MayWriteArea reports whether the role may create entities in the given area.
// Admins may write anywhere; managers only within their assigned area.
func (s Scope) MayWriteArea(areaID uuid.UUID) bool {
	if s.Role == RoleAdmin {
		return true
	}
	return s.AreaID != nil && *s.AreaID == areaID
}

type contextKey string

const scopeKey contextKey = "tenantScope"

// ContextWithScope returns a new context carrying the authenticated scope.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext retrieves the authenticated scope from the context, if any.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	value := ctx.Value(scopeKey)
	if value == nil {
		return Scope{}, false
	}
	scope, ok := value.(Scope)
	if !ok || scope.TenantID == uuid.Nil {
		return Scope{}, false
	}
	return scope, true
}

// RequireScope returns the scope from the context or an error when absent.
func RequireScope(ctx context.Context) (Scope, error) {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return Scope{}, fmt.Errorf("tenant scope is required")
	}
	return scope, nil
}
