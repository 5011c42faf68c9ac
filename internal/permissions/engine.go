package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RoleGrant is one active role of a user as seen by the engine: the template
// it derives from plus its per-assignment custom grants. Roles scoped to an
// inactive restaurant never reach the engine.
type RoleGrant struct {
	RoleID            string
	Template          string
	RestaurantID      *string
	CustomPermissions []string
}

// Repository provides the ground truth the engine computes from.
type Repository interface {
	// ActiveGrantsForUser returns the user's active roles whose restaurant,
	// if any, is itself active.
	ActiveGrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error)
	// TemplatePermissions returns the active permission keys mapped to a
	// role template. Inactive catalog entries are excluded.
	TemplatePermissions(ctx context.Context, template string) ([]string, error)
}

// Engine computes effective permission sets with a per-user TTL cache and an
// indefinitely cached template table.
type Engine struct {
	repo   Repository
	cache  Cache
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	templates map[string][]string
}

// NewEngine constructs an Engine. The cache decides the staleness profile;
// see Cache.
func NewEngine(repo Repository, cache Cache, logger *slog.Logger) *Engine {
	return &Engine{
		repo:      repo,
		cache:     cache,
		logger:    logger,
		templates: make(map[string][]string),
	}
}

// EffectivePermissions returns the union of active-template permissions and
// custom permissions across all of the user's active, restaurant-active
// roles. Results are cached per user; concurrent recomputes for the same user
// collapse into one repository round trip.
func (e *Engine) EffectivePermissions(ctx context.Context, userID string) (Set, error) {
	if cached, ok := e.cache.Get(ctx, userID); ok {
		return NewSet(cached), nil
	}

	v, err, _ := e.group.Do(userID, func() (interface{}, error) {
		perms, err := e.compute(ctx, userID)
		if err != nil {
			return nil, err
		}
		e.cache.Set(ctx, userID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return NewSet(v.([]string)), nil
}

// EffectivePermissionList is EffectivePermissions flattened to a sorted slice,
// the shape tokens and session snapshots carry.
func (e *Engine) EffectivePermissionList(ctx context.Context, userID string) ([]string, error) {
	set, err := e.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return set.List(), nil
}

func (e *Engine) compute(ctx context.Context, userID string) ([]string, error) {
	grants, err := e.repo.ActiveGrantsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("permissions: load grants for %s: %w", userID, err)
	}

	union := make(Set)
	for _, grant := range grants {
		tmpl, err := e.templatePermissions(ctx, grant.Template)
		if err != nil {
			return nil, err
		}
		for _, p := range tmpl {
			union[p] = struct{}{}
		}
		for _, p := range NewSet(grant.CustomPermissions).List() {
			union[p] = struct{}{}
		}
	}
	return union.List(), nil
}

func (e *Engine) templatePermissions(ctx context.Context, template string) ([]string, error) {
	e.mu.RLock()
	perms, ok := e.templates[template]
	e.mu.RUnlock()
	if ok {
		return perms, nil
	}

	perms, err := e.repo.TemplatePermissions(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("permissions: load template %s: %w", template, err)
	}
	e.mu.Lock()
	e.templates[template] = perms
	e.mu.Unlock()
	return perms, nil
}

// Invalidate evicts one user's cached permissions. Role mutations call this
// synchronously before reporting success; eviction itself is best-effort.
func (e *Engine) Invalidate(ctx context.Context, userID string) {
	e.cache.Delete(ctx, userID)
}

// InvalidateAll evicts every cached user entry. Used when a template mapping
// or catalog entry changes, since any user may be affected.
func (e *Engine) InvalidateAll(ctx context.Context) {
	e.cache.Purge(ctx)
}

// InvalidateTemplate drops a template's cached mapping along with every user
// entry derived from it.
func (e *Engine) InvalidateTemplate(ctx context.Context, template string) {
	e.mu.Lock()
	delete(e.templates, template)
	e.mu.Unlock()
	e.cache.Purge(ctx)
}
