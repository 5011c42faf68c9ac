package tenant

import (
	"context"
	"fmt"

	"github.com/atiff-automation/QR-Eat-sub000/internal/audit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
)

// OwnershipChecker confirms current restaurant ownership from persistence.
// Ownership changes out-of-band, so it is never trusted from a token.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, restaurantID, userID string) (bool, error)
}

// ResourceResolver maps a resource id to its owning restaurant.
type ResourceResolver interface {
	RestaurantForOrder(ctx context.Context, orderID string) (string, error)
	RestaurantForTable(ctx context.Context, tableID string) (string, error)
	RestaurantForStaffRole(ctx context.Context, roleID string) (string, error)
}

// DenialRecorder notes denials in the audit trail; never fails the caller.
type DenialRecorder interface {
	LogPermissionDenied(ctx context.Context, userID, permission, resource string, req audit.RequestInfo)
}

// Guard applies the three-way access rule: platform admins always pass, staff
// pass only in their own tenant, owners must be the restaurant's confirmed
// owner.
type Guard struct {
	owners    OwnershipChecker
	resources ResourceResolver
	denials   DenialRecorder
}

// NewGuard constructs a Guard.
func NewGuard(owners OwnershipChecker, resources ResourceResolver, denials DenialRecorder) *Guard {
	return &Guard{owners: owners, resources: resources, denials: denials}
}

// EnforceRestaurantAccess checks read access to a restaurant's data.
func (g *Guard) EnforceRestaurantAccess(ctx context.Context, tc *Context, targetRestaurantID string) error {
	if tc == nil {
		return authkit.ErrMissingTenantContext
	}
	if tc.IsAdmin {
		return nil
	}
	if tc.RestaurantID == nil || *tc.RestaurantID != targetRestaurantID {
		return g.deny(ctx, tc, "restaurant:read", targetRestaurantID)
	}
	return nil
}

// EnforceRestaurantMutation checks write access. Owners additionally need a
// persistence-confirmed ownership of the target restaurant.
func (g *Guard) EnforceRestaurantMutation(ctx context.Context, tc *Context, targetRestaurantID string) error {
	if err := g.EnforceRestaurantAccess(ctx, tc, targetRestaurantID); err != nil {
		return err
	}
	if tc.IsAdmin || tc.UserType != roles.UserTypeRestaurantOwner {
		return nil
	}
	owns, err := g.owners.IsOwner(ctx, targetRestaurantID, tc.UserID)
	if err != nil {
		return fmt.Errorf("tenant: confirm ownership: %w", err)
	}
	if !owns {
		return g.deny(ctx, tc, "restaurant:manage", targetRestaurantID)
	}
	return nil
}

// RequireOrderAccess resolves the order's restaurant and applies the
// three-way rule.
func (g *Guard) RequireOrderAccess(ctx context.Context, tc *Context, orderID string) error {
	rid, err := g.resources.RestaurantForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return g.requireConfirmed(ctx, tc, rid, "orders")
}

// RequireTableAccess resolves the table's restaurant and applies the
// three-way rule.
func (g *Guard) RequireTableAccess(ctx context.Context, tc *Context, tableID string) error {
	rid, err := g.resources.RestaurantForTable(ctx, tableID)
	if err != nil {
		return err
	}
	return g.requireConfirmed(ctx, tc, rid, "tables")
}

// RequireStaffAccess resolves the staff assignment's restaurant and applies
// the three-way rule.
func (g *Guard) RequireStaffAccess(ctx context.Context, tc *Context, staffRoleID string) error {
	rid, err := g.resources.RestaurantForStaffRole(ctx, staffRoleID)
	if err != nil {
		return err
	}
	return g.requireConfirmed(ctx, tc, rid, "staff")
}

// RequireRestaurantAccess applies the three-way rule directly to a
// restaurant id, with ownership confirmed.
func (g *Guard) RequireRestaurantAccess(ctx context.Context, tc *Context, restaurantID string) error {
	return g.requireConfirmed(ctx, tc, restaurantID, "restaurant")
}

func (g *Guard) requireConfirmed(ctx context.Context, tc *Context, restaurantID, resource string) error {
	if tc == nil {
		return authkit.ErrMissingTenantContext
	}
	if tc.IsAdmin {
		return nil
	}
	switch tc.UserType {
	case roles.UserTypeStaff:
		if tc.RestaurantID != nil && *tc.RestaurantID == restaurantID {
			return nil
		}
	case roles.UserTypeRestaurantOwner:
		owns, err := g.owners.IsOwner(ctx, restaurantID, tc.UserID)
		if err != nil {
			return fmt.Errorf("tenant: confirm ownership: %w", err)
		}
		if owns {
			return nil
		}
	}
	return g.deny(ctx, tc, resource+":read", restaurantID)
}

func (g *Guard) deny(ctx context.Context, tc *Context, permission, restaurantID string) error {
	if g.denials != nil {
		g.denials.LogPermissionDenied(ctx, tc.UserID, permission, restaurantID, audit.RequestInfo{})
	}
	return authkit.PermissionDenied(permission, restaurantID)
}
