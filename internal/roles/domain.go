// Package roles manages user-role assignments and role switching.
package roles

import (
	"time"

	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
)

// UserType is the closed set of identity variants.
type UserType string

const (
	UserTypePlatformAdmin   UserType = "platform_admin"
	UserTypeRestaurantOwner UserType = "restaurant_owner"
	UserTypeStaff           UserType = "staff"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	switch t {
	case UserTypePlatformAdmin, UserTypeRestaurantOwner, UserTypeStaff:
		return true
	}
	return false
}

// UserRole assigns a role template to a user, optionally scoped to a
// restaurant. platform_admin roles are never restaurant-scoped; everything
// else must be.
type UserRole struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	UserType          UserType  `json:"userType"`
	RoleTemplate      string    `json:"roleTemplate"`
	RestaurantID      *string   `json:"restaurantId,omitempty"`
	CustomPermissions []string  `json:"customPermissions,omitempty"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CompatibleTemplate reports whether a user type may carry a template.
func CompatibleTemplate(userType UserType, template string) bool {
	switch userType {
	case UserTypePlatformAdmin:
		return template == permissions.TemplatePlatformAdmin
	case UserTypeRestaurantOwner:
		return template == permissions.TemplateRestaurantOwner
	case UserTypeStaff:
		return template == permissions.TemplateManager ||
			template == permissions.TemplateKitchenStaff ||
			template == permissions.TemplateWaiter
	}
	return false
}

// Priority ranks a role for "best role" selection, lower being more
// privileged. Used at login default and by the legacy upgrade path.
func (r UserRole) Priority() int {
	return permissions.TemplatePriority(r.RoleTemplate)
}
