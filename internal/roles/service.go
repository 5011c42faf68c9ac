package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/restaurants"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
)

// RestaurantDirectory is the tenant lookup the manager validates against.
type RestaurantDirectory interface {
	Get(ctx context.Context, id string) (*restaurants.Restaurant, error)
}

// SessionBinder is the slice of the session store role management drives.
type SessionBinder interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	SetCurrentRole(ctx context.Context, id, roleID string, restaurantID *string, permissions []string) error
	InvalidateForRole(ctx context.Context, roleID string) (int64, error)
}

// PermissionSource computes and evicts effective permission sets.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID string) (permissions.Set, error)
	Invalidate(ctx context.Context, userID string)
}

// AuditTrail records role lifecycle events. Implementations never fail the
// caller.
type AuditTrail interface {
	LogRoleSwitch(ctx context.Context, userID, fromRole, toRole string, meta map[string]any)
	LogUserRoleChange(ctx context.Context, actorID, targetUserID, action, roleTemplate string, meta map[string]any)
}

// CreateParams describes a role assignment request.
type CreateParams struct {
	UserID            string
	UserType          UserType
	RoleTemplate      string
	RestaurantID      *string
	CustomPermissions []string
}

// Service enforces role/tenant compatibility rules and orchestrates switching.
type Service struct {
	repo        Repository
	restaurants RestaurantDirectory
	sessions    SessionBinder
	perms       PermissionSource
	audit       AuditTrail
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, rd RestaurantDirectory, sb SessionBinder, ps PermissionSource, at AuditTrail) *Service {
	return &Service{repo: repo, restaurants: rd, sessions: sb, perms: ps, audit: at, now: time.Now}
}

// CreateUserRole validates and persists an assignment. Validation failures
// come back with field-level detail; duplicate active assignments for the
// same (user, restaurant) pair come back as ErrRoleAlreadyExists.
func (s *Service) CreateUserRole(ctx context.Context, actorID string, params CreateParams) (*UserRole, error) {
	if err := s.validateCreate(params); err != nil {
		return nil, err
	}

	if params.RestaurantID != nil {
		rest, err := s.restaurants.Get(ctx, *params.RestaurantID)
		if err != nil {
			if errors.Is(err, authkit.ErrNotFound) {
				return nil, authkit.ErrRestaurantInactive
			}
			return nil, fmt.Errorf("roles: look up restaurant: %w", err)
		}
		if !rest.IsActive {
			return nil, authkit.ErrRestaurantInactive
		}
	}

	dup, err := s.repo.HasActiveForRestaurant(ctx, params.UserID, params.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("roles: check duplicate: %w", err)
	}
	if dup {
		return nil, authkit.ErrRoleAlreadyExists
	}

	now := s.now().UTC()
	role := &UserRole{
		ID:                uuid.NewString(),
		UserID:            params.UserID,
		UserType:          params.UserType,
		RoleTemplate:      params.RoleTemplate,
		RestaurantID:      params.RestaurantID,
		CustomPermissions: params.CustomPermissions,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, role); err != nil {
		if errors.Is(err, authkit.ErrRoleAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("roles: create: %w", err)
	}

	s.perms.Invalidate(ctx, params.UserID)
	s.audit.LogUserRoleChange(ctx, actorID, params.UserID, "role.assigned", params.RoleTemplate, map[string]any{
		"role_id":       role.ID,
		"restaurant_id": deref(params.RestaurantID),
	})
	return role, nil
}

// DeleteUserRole soft-deletes an assignment. A user's sole active role can
// never be removed; sessions bound to the removed role are invalidated so the
// client must re-authenticate.
func (s *Service) DeleteUserRole(ctx context.Context, actorID, roleID string) error {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return err
	}

	count, err := s.repo.CountActiveForUser(ctx, role.UserID)
	if err != nil {
		return fmt.Errorf("roles: count active: %w", err)
	}
	if role.IsActive && count <= 1 {
		return authkit.Validation(authkit.FieldError{
			Field:   "roleId",
			Message: "cannot remove the user's only active role",
		})
	}

	if err := s.repo.Deactivate(ctx, roleID, s.now().UTC()); err != nil {
		return err
	}

	if _, err := s.sessions.InvalidateForRole(ctx, roleID); err != nil {
		return fmt.Errorf("roles: invalidate sessions: %w", err)
	}
	s.perms.Invalidate(ctx, role.UserID)
	s.audit.LogUserRoleChange(ctx, actorID, role.UserID, "role.removed", role.RoleTemplate, map[string]any{
		"role_id": roleID,
	})
	return nil
}

// SetCustomPermissions replaces a role's per-assignment grants and evicts the
// owner's cached permissions before returning.
func (s *Service) SetCustomPermissions(ctx context.Context, actorID, roleID string, perms []string) error {
	for _, p := range perms {
		if !permissions.ValidKey(p) {
			return authkit.Validation(authkit.FieldError{Field: "customPermissions", Message: "invalid permission key: " + p})
		}
	}
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.repo.SetCustomPermissions(ctx, roleID, perms, s.now().UTC()); err != nil {
		return err
	}
	s.perms.Invalidate(ctx, role.UserID)
	s.audit.LogUserRoleChange(ctx, actorID, role.UserID, "role.permissions_changed", role.RoleTemplate, map[string]any{
		"role_id": roleID,
	})
	return nil
}

// SwitchUserRole verifies the target role and atomically repoints the
// session's current role. No second session is ever created.
func (s *Service) SwitchUserRole(ctx context.Context, userID, targetRoleID, sessionID string, restaurantContextID *string) (*UserRole, error) {
	role, err := s.repo.Get(ctx, targetRoleID)
	if err != nil {
		if errors.Is(err, authkit.ErrNotFound) {
			return nil, authkit.RoleSwitchFailed("role does not belong to user")
		}
		return nil, fmt.Errorf("roles: load target role: %w", err)
	}
	if role.UserID != userID {
		return nil, authkit.RoleSwitchFailed("role does not belong to user")
	}
	if !role.IsActive {
		return nil, authkit.RoleSwitchFailed("role is not active")
	}
	if role.RestaurantID != nil {
		rest, err := s.restaurants.Get(ctx, *role.RestaurantID)
		if err != nil || !rest.IsActive {
			return nil, authkit.RoleSwitchFailed("restaurant inactive or not found")
		}
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, authkit.RoleSwitchFailed("session does not belong to user")
	}

	s.perms.Invalidate(ctx, userID)
	permSet, err := s.perms.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roles: recompute permissions: %w", err)
	}

	contextID := role.RestaurantID
	if contextID == nil {
		contextID = restaurantContextID
	}
	if err := s.sessions.SetCurrentRole(ctx, sessionID, role.ID, contextID, permSet.List()); err != nil {
		return nil, fmt.Errorf("roles: update session: %w", err)
	}

	s.audit.LogRoleSwitch(ctx, userID, sess.CurrentRoleID, role.ID, map[string]any{
		"session_id":    sessionID,
		"role_template": role.RoleTemplate,
	})
	return role, nil
}

// ListUserRoles returns the user's active roles.
func (s *Service) ListUserRoles(ctx context.Context, userID string) ([]UserRole, error) {
	return s.repo.ListActiveForUser(ctx, userID)
}

// BestRole picks the role to bind at login or legacy upgrade. Hints from the
// old credential narrow the choice; otherwise the highest-priority role wins.
func (s *Service) BestRole(ctx context.Context, userID string, hintType UserType, hintRestaurant *string) (*UserRole, error) {
	list, err := s.repo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, authkit.ErrNoActiveRoles
	}

	best := -1
	for i, role := range list {
		if hintRestaurant != nil && role.RestaurantID != nil && *role.RestaurantID == *hintRestaurant {
			if hintType == "" || role.UserType == hintType {
				return &list[i], nil
			}
		}
		if hintType != "" && role.UserType == hintType {
			if best == -1 || role.Priority() < list[best].Priority() {
				best = i
			}
		}
	}
	if best >= 0 {
		return &list[best], nil
	}
	for i, role := range list {
		if best == -1 || role.Priority() < list[best].Priority() {
			best = i
		}
	}
	return &list[best], nil
}

func (s *Service) validateCreate(params CreateParams) error {
	var fields []authkit.FieldError
	if params.UserID == "" {
		fields = append(fields, authkit.FieldError{Field: "userId", Message: "required"})
	}
	if !params.UserType.Valid() {
		fields = append(fields, authkit.FieldError{Field: "userType", Message: "unknown user type"})
	}
	if !permissions.ValidTemplate(params.RoleTemplate) {
		fields = append(fields, authkit.FieldError{Field: "roleTemplate", Message: "unknown role template"})
	} else if params.UserType.Valid() && !CompatibleTemplate(params.UserType, params.RoleTemplate) {
		fields = append(fields, authkit.FieldError{Field: "roleTemplate", Message: "template not allowed for user type"})
	}
	if params.UserType == UserTypePlatformAdmin && params.RestaurantID != nil {
		fields = append(fields, authkit.FieldError{Field: "restaurantId", Message: "platform admins are not restaurant-scoped"})
	}
	if params.UserType != UserTypePlatformAdmin && params.RestaurantID == nil {
		fields = append(fields, authkit.FieldError{Field: "restaurantId", Message: "required for restaurant-scoped roles"})
	}
	for _, p := range params.CustomPermissions {
		if !permissions.ValidKey(p) {
			fields = append(fields, authkit.FieldError{Field: "customPermissions", Message: "invalid permission key: " + p})
		}
	}
	if len(fields) > 0 {
		return authkit.Validation(fields...)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
