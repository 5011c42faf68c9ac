// Package permissions stores the permission catalog and computes per-user
// effective permission sets.
package permissions

import "regexp"

// Permission keys follow the resource:action form. The catalog below is the
// full set of grantable capabilities; everything else is rejected.
const (
	PermMenuRead         = "menu:read"
	PermMenuWrite        = "menu:write"
	PermOrdersRead       = "orders:read"
	PermOrdersWrite      = "orders:write"
	PermOrdersState      = "orders:update_status"
	PermTablesRead       = "tables:read"
	PermTablesWrite      = "tables:write"
	PermBillingRead      = "billing:read"
	PermBillingWrite     = "billing:write"
	PermStaffRead        = "staff:read"
	PermStaffManage      = "staff:manage"
	PermRestaurantRead   = "restaurant:read"
	PermRestaurantManage = "restaurant:manage"
	PermReportsRead      = "reports:read"
	PermAuditRead        = "audit:read"
	PermUsersManage      = "users:manage"
	PermRolesManage      = "roles:manage"
	PermPlatformManage   = "platform:manage"
)

// Role templates are a fixed, administratively maintained catalog. Adding one
// is a deploy, not a runtime operation.
const (
	TemplatePlatformAdmin   = "platform_admin"
	TemplateRestaurantOwner = "restaurant_owner"
	TemplateManager         = "manager"
	TemplateKitchenStaff    = "kitchen_staff"
	TemplateWaiter          = "waiter"
)

var keyPattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+$`)

// ValidKey reports whether key matches the resource:action grammar.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// AllKeys lists every permission in the catalog.
func AllKeys() []string {
	return []string{
		PermMenuRead, PermMenuWrite,
		PermOrdersRead, PermOrdersWrite, PermOrdersState,
		PermTablesRead, PermTablesWrite,
		PermBillingRead, PermBillingWrite,
		PermStaffRead, PermStaffManage,
		PermRestaurantRead, PermRestaurantManage,
		PermReportsRead, PermAuditRead,
		PermUsersManage, PermRolesManage, PermPlatformManage,
	}
}

// AllTemplates lists every role template in priority order, highest first.
func AllTemplates() []string {
	return []string{
		TemplatePlatformAdmin,
		TemplateRestaurantOwner,
		TemplateManager,
		TemplateKitchenStaff,
		TemplateWaiter,
	}
}

// ValidTemplate reports whether template names a known role template.
func ValidTemplate(template string) bool {
	for _, t := range AllTemplates() {
		if t == template {
			return true
		}
	}
	return false
}

// TemplatePriority returns the rank of a template, lower meaning more
// privileged. Unknown templates sort last.
func TemplatePriority(template string) int {
	for i, t := range AllTemplates() {
		if t == template {
			return i
		}
	}
	return len(AllTemplates())
}

// TemplateGrants returns the static grant table entry for a template. The
// database seed mirrors this table; the engine reads the database so custom
// catalogs stay possible, but validation and seeding come from here.
func TemplateGrants(template string) []string {
	switch template {
	case TemplatePlatformAdmin:
		return AllKeys()
	case TemplateRestaurantOwner:
		return []string{
			PermMenuRead, PermMenuWrite,
			PermOrdersRead, PermOrdersWrite, PermOrdersState,
			PermTablesRead, PermTablesWrite,
			PermBillingRead, PermBillingWrite,
			PermStaffRead, PermStaffManage,
			PermRestaurantRead, PermRestaurantManage,
			PermReportsRead, PermAuditRead,
		}
	case TemplateManager:
		return []string{
			PermMenuRead, PermMenuWrite,
			PermOrdersRead, PermOrdersWrite, PermOrdersState,
			PermTablesRead, PermTablesWrite,
			PermBillingRead,
			PermStaffRead,
			PermRestaurantRead,
			PermReportsRead,
		}
	case TemplateKitchenStaff:
		return []string{PermMenuRead, PermOrdersRead, PermOrdersState}
	case TemplateWaiter:
		return []string{PermMenuRead, PermOrdersRead, PermOrdersWrite, PermTablesRead}
	default:
		return nil
	}
}
