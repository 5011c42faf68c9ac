package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

func TestNewSetNormalises(t *testing.T) {
	s := NewSet([]string{" Menu:Read ", "orders:write", "", "ORDERS:WRITE"})
	assert.Len(t, s, 2)
	assert.True(t, s.Has("menu:read"))
	assert.True(t, s.Has("Orders:Write"))
	assert.False(t, s.Has("menu:write"))
}

func TestSetHasAnyAll(t *testing.T) {
	s := NewSet([]string{PermMenuRead, PermOrdersRead})
	assert.True(t, s.HasAny(PermBillingRead, PermOrdersRead))
	assert.False(t, s.HasAny(PermBillingRead, PermBillingWrite))
	assert.True(t, s.HasAll(PermMenuRead, PermOrdersRead))
	assert.False(t, s.HasAll(PermMenuRead, PermOrdersWrite))
}

func TestSetCanAccess(t *testing.T) {
	s := NewSet([]string{PermOrdersState})
	assert.True(t, s.CanAccess("orders", "update_status"))
	assert.False(t, s.CanAccess("orders", "write"))
}

func TestSetRequire(t *testing.T) {
	s := NewSet([]string{PermMenuRead})
	require.NoError(t, s.Require(PermMenuRead))

	err := s.Require(PermMenuWrite)
	require.Error(t, err)
	assert.True(t, authkit.IsPermissionDenied(err))

	err = s.RequireResource("billing", "read")
	require.Error(t, err)
	var pd *authkit.PermissionDeniedError
	require.ErrorAs(t, err, &pd)
	assert.Equal(t, "billing:read", pd.Permission)
	assert.Equal(t, "billing", pd.Resource)
}

func TestSetListSorted(t *testing.T) {
	s := NewSet([]string{"b:two", "a:one", "c:three"})
	assert.Equal(t, []string{"a:one", "b:two", "c:three"}, s.List())
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("orders:update_status"))
	assert.False(t, ValidKey("Orders:read"))
	assert.False(t, ValidKey("orders"))
	assert.False(t, ValidKey("orders:read:extra"))
	assert.False(t, ValidKey("orders read"))
}

func TestTemplateCatalog(t *testing.T) {
	for _, tmpl := range AllTemplates() {
		assert.True(t, ValidTemplate(tmpl))
		for _, key := range TemplateGrants(tmpl) {
			assert.True(t, ValidKey(key), "template %s grants invalid key %s", tmpl, key)
		}
	}
	assert.False(t, ValidTemplate("superuser"))

	// Priority order must match the catalog order, highest first.
	assert.Less(t, TemplatePriority(TemplatePlatformAdmin), TemplatePriority(TemplateRestaurantOwner))
	assert.Less(t, TemplatePriority(TemplateManager), TemplatePriority(TemplateWaiter))
}
