package permissions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEngineRepo struct {
	grants    map[string][]RoleGrant
	templates map[string][]string

	grantCalls    atomic.Int64
	templateCalls atomic.Int64
	grantsError   error
}

func newMockEngineRepo() *mockEngineRepo {
	return &mockEngineRepo{
		grants:    make(map[string][]RoleGrant),
		templates: make(map[string][]string),
	}
}

func (m *mockEngineRepo) ActiveGrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	m.grantCalls.Add(1)
	if m.grantsError != nil {
		return nil, m.grantsError
	}
	return m.grants[userID], nil
}

func (m *mockEngineRepo) TemplatePermissions(ctx context.Context, template string) ([]string, error) {
	m.templateCalls.Add(1)
	return m.templates[template], nil
}

func newTestEngine(repo Repository) *Engine {
	return NewEngine(repo, NewMemoryCache(128, time.Minute), slog.Default())
}

func TestEffectivePermissionsUnion(t *testing.T) {
	repo := newMockEngineRepo()
	rid := "rest-1"
	repo.templates[TemplateWaiter] = []string{PermMenuRead, PermOrdersRead}
	repo.templates[TemplateKitchenStaff] = []string{PermMenuRead, PermOrdersState}
	repo.grants["u1"] = []RoleGrant{
		{RoleID: "r1", Template: TemplateWaiter, RestaurantID: &rid, CustomPermissions: []string{PermTablesRead}},
		{RoleID: "r2", Template: TemplateKitchenStaff, RestaurantID: &rid},
	}

	set, err := newTestEngine(repo).EffectivePermissions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{PermMenuRead, PermOrdersRead, PermOrdersState, PermTablesRead}, set.List())
}

func TestEffectivePermissionsNoRoles(t *testing.T) {
	repo := newMockEngineRepo()
	set, err := newTestEngine(repo).EffectivePermissions(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, set.List())
}

func TestEffectivePermissionsCached(t *testing.T) {
	repo := newMockEngineRepo()
	repo.templates[TemplateWaiter] = []string{PermMenuRead}
	repo.grants["u1"] = []RoleGrant{{RoleID: "r1", Template: TemplateWaiter}}
	engine := newTestEngine(repo)

	for i := 0; i < 5; i++ {
		_, err := engine.EffectivePermissions(context.Background(), "u1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), repo.grantCalls.Load())
}

func TestInvalidateForcesRecompute(t *testing.T) {
	repo := newMockEngineRepo()
	repo.templates[TemplateWaiter] = []string{PermMenuRead}
	repo.grants["u1"] = []RoleGrant{{RoleID: "r1", Template: TemplateWaiter}}
	engine := newTestEngine(repo)

	ctx := context.Background()
	_, err := engine.EffectivePermissions(ctx, "u1")
	require.NoError(t, err)

	repo.grants["u1"] = append(repo.grants["u1"], RoleGrant{
		RoleID: "r2", Template: TemplateWaiter, CustomPermissions: []string{PermReportsRead},
	})
	engine.Invalidate(ctx, "u1")

	set, err := engine.EffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, set.Has(PermReportsRead))
	assert.Equal(t, int64(2), repo.grantCalls.Load())
}

func TestTemplateTableCachedUntilInvalidated(t *testing.T) {
	repo := newMockEngineRepo()
	repo.templates[TemplateWaiter] = []string{PermMenuRead}
	repo.grants["u1"] = []RoleGrant{{RoleID: "r1", Template: TemplateWaiter}}
	repo.grants["u2"] = []RoleGrant{{RoleID: "r2", Template: TemplateWaiter}}
	engine := newTestEngine(repo)

	ctx := context.Background()
	_, err := engine.EffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	_, err = engine.EffectivePermissions(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.templateCalls.Load())

	repo.templates[TemplateWaiter] = []string{PermMenuRead, PermOrdersRead}
	engine.InvalidateTemplate(ctx, TemplateWaiter)

	set, err := engine.EffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, set.Has(PermOrdersRead))
}

func TestEffectivePermissionsConcurrent(t *testing.T) {
	repo := newMockEngineRepo()
	repo.templates[TemplateWaiter] = []string{PermMenuRead}
	repo.grants["u1"] = []RoleGrant{{RoleID: "r1", Template: TemplateWaiter}}
	engine := newTestEngine(repo)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := engine.EffectivePermissions(context.Background(), "u1")
			assert.NoError(t, err)
			assert.True(t, set.Has(PermMenuRead))
		}()
	}
	wg.Wait()
}

func TestEffectivePermissionsRepoError(t *testing.T) {
	repo := newMockEngineRepo()
	repo.grantsError = errors.New("db down")
	_, err := newTestEngine(repo).EffectivePermissions(context.Background(), "u1")
	require.Error(t, err)
}

func TestEffectivePermissionList(t *testing.T) {
	repo := newMockEngineRepo()
	repo.templates[TemplateWaiter] = []string{PermOrdersRead, PermMenuRead}
	repo.grants["u1"] = []RoleGrant{{RoleID: "r1", Template: TemplateWaiter}}

	list, err := newTestEngine(repo).EffectivePermissionList(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{PermMenuRead, PermOrdersRead}, list)
}
