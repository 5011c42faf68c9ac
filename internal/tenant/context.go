// Package tenant turns request credentials into a typed tenant context and
// enforces restaurant-scoped access.
package tenant

import (
	"context"

	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
)

// Context is the request-scoped identity. Derived fresh per request, never
// cached across requests.
type Context struct {
	UserID         string
	UserType       roles.UserType
	Email          string
	RestaurantID   *string
	OwnerID        *string
	RoleTemplate   string
	Permissions    permissions.Set
	IsAdmin        bool
	RestaurantSlug string
	SessionID      string
}

type tenantContextKey struct{}

// WithContext stores the tenant context on a request context.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// FromContext extracts the tenant context, nil when absent.
func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(tenantContextKey{}).(*Context)
	return tc
}
