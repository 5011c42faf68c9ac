// Package auth orchestrates the credential lifecycle: login, logout, token
// refresh and role switching. It composes the user, role, permission, session
// and token services and records every outcome in the audit trail.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atiff-automation/QR-Eat-sub000/internal/audit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/restaurants"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
	"github.com/atiff-automation/QR-Eat-sub000/internal/token"
	"github.com/atiff-automation/QR-Eat-sub000/internal/users"
)

// UserDirectory authenticates and resolves accounts.
type UserDirectory interface {
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
}

// RoleDirectory selects and switches roles.
type RoleDirectory interface {
	BestRole(ctx context.Context, userID string, hintType roles.UserType, hintRestaurant *string) (*roles.UserRole, error)
	ListUserRoles(ctx context.Context, userID string) ([]roles.UserRole, error)
	SwitchUserRole(ctx context.Context, userID, targetRoleID, sessionID string, restaurantContextID *string) (*roles.UserRole, error)
}

// TokenIssuer signs, verifies and rotates bearer tokens.
type TokenIssuer interface {
	Generate(ctx context.Context, p token.GenerateParams) (string, error)
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
	Refresh(ctx context.Context, oldToken string) (string, *token.Claims, error)
}

// SessionControl is the slice of the session store the orchestrator drives.
type SessionControl interface {
	Create(ctx context.Context, params session.CreateParams) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Invalidate(ctx context.Context, id string) error
	InvalidateAllForUser(ctx context.Context, userID string) error
}

// PermissionSource computes the effective permission list to snapshot.
type PermissionSource interface {
	EffectivePermissionList(ctx context.Context, userID string) ([]string, error)
}

// RestaurantDirectory resolves the tenant embedded in tokens.
type RestaurantDirectory interface {
	Get(ctx context.Context, id string) (*restaurants.Restaurant, error)
}

// AuditTrail records authentication outcomes; never fails the caller.
type AuditTrail interface {
	LogAuthentication(ctx context.Context, userID string, req audit.RequestInfo)
	LogAuthenticationFailure(ctx context.Context, userID, reason string, req audit.RequestInfo)
	LogLogout(ctx context.Context, userID string, req audit.RequestInfo)
	LogTokenRefresh(ctx context.Context, userID, oldSessionID, newSessionID string, req audit.RequestInfo)
}

// Service is the auth orchestrator.
type Service struct {
	users       UserDirectory
	roles       RoleDirectory
	tokens      TokenIssuer
	sessions    SessionControl
	permissions PermissionSource
	restaurants RestaurantDirectory
	audit       AuditTrail
	logger      *slog.Logger
}

// NewService constructs the orchestrator.
func NewService(ud UserDirectory, rd RoleDirectory, ti TokenIssuer, sc SessionControl, ps PermissionSource, rest RestaurantDirectory, at AuditTrail, logger *slog.Logger) *Service {
	return &Service{
		users:       ud,
		roles:       rd,
		tokens:      ti,
		sessions:    sc,
		permissions: ps,
		restaurants: rest,
		audit:       at,
		logger:      logger,
	}
}

// LoginParams carries one login attempt.
type LoginParams struct {
	Email          string
	Password       string
	RestaurantHint *string
	IPAddress      string
	UserAgent      string
}

// LoginResult is the issued credential plus the identity snapshot it encodes.
type LoginResult struct {
	Token          string
	User           *users.User
	CurrentRole    roles.UserRole
	AvailableRoles []roles.UserRole
	Restaurant     *restaurants.Restaurant
	Permissions    []string
	Session        *session.Session
}

// Login verifies credentials, picks the user's best role, opens a fresh
// session (displacing any previous one) and issues a token bound to it.
// Every failure is audited before it propagates.
func (s *Service) Login(ctx context.Context, p LoginParams) (*LoginResult, error) {
	req := audit.RequestInfo{IPAddress: p.IPAddress, UserAgent: p.UserAgent}

	user, err := s.users.Authenticate(ctx, p.Email, p.Password)
	if err != nil {
		s.audit.LogAuthenticationFailure(ctx, "", "invalid credentials for "+p.Email, req)
		return nil, err
	}

	role, err := s.roles.BestRole(ctx, user.ID, "", p.RestaurantHint)
	if err != nil {
		s.audit.LogAuthenticationFailure(ctx, user.ID, "no active roles", req)
		return nil, err
	}

	snapshot, err := s.snapshot(ctx, user.ID, role)
	if err != nil {
		if authkit.IsAuthenticationFailure(err) || errors.Is(err, authkit.ErrRestaurantInactive) {
			s.audit.LogAuthenticationFailure(ctx, user.ID, err.Error(), req)
		}
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:              user.ID,
		CurrentRoleID:       role.ID,
		RestaurantContextID: role.RestaurantID,
		Permissions:         snapshot.permissions,
		IPAddress:           p.IPAddress,
		UserAgent:           p.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}

	signed, err := s.tokens.Generate(ctx, token.GenerateParams{
		User:           user,
		Session:        sess,
		CurrentRole:    *role,
		AvailableRoles: snapshot.available,
		Restaurant:     snapshot.restaurant,
		Permissions:    snapshot.permissions,
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthentication(ctx, user.ID, req)
	return &LoginResult{
		Token:          signed,
		User:           user,
		CurrentRole:    *role,
		AvailableRoles: snapshot.available,
		Restaurant:     snapshot.restaurant,
		Permissions:    snapshot.permissions,
		Session:        sess,
	}, nil
}

// Logout ends the session behind a token. Idempotent: an invalid or already
// expired token still logs out cleanly, since there is nothing left to end.
func (s *Service) Logout(ctx context.Context, tokenString, ip, ua string) error {
	claims, err := s.tokens.Verify(ctx, tokenString)
	if err != nil {
		if authkit.IsAuthenticationFailure(err) {
			return nil
		}
		return err
	}
	if err := s.sessions.Invalidate(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("auth: end session: %w", err)
	}
	s.audit.LogLogout(ctx, claims.UserID, audit.RequestInfo{IPAddress: ip, UserAgent: ua})
	return nil
}

// Refresh rotates a live credential. The previous session and token are dead
// the moment this returns.
func (s *Service) Refresh(ctx context.Context, oldToken, ip, ua string) (string, *token.Claims, error) {
	req := audit.RequestInfo{IPAddress: ip, UserAgent: ua}

	old, err := s.tokens.Verify(ctx, oldToken)
	if err != nil {
		s.audit.LogAuthenticationFailure(ctx, "", "refresh with invalid token", req)
		return "", nil, err
	}

	signed, claims, err := s.tokens.Refresh(ctx, oldToken)
	if err != nil {
		return "", nil, err
	}
	s.audit.LogTokenRefresh(ctx, claims.UserID, old.SessionID, claims.SessionID, req)
	return signed, claims, nil
}

// SwitchRole moves the caller's session to another of their roles and issues
// a replacement token. The prior token's hash is overwritten, so it stops
// verifying immediately.
func (s *Service) SwitchRole(ctx context.Context, userID, sessionID, targetRoleID string, restaurantContextID *string) (*LoginResult, error) {
	role, err := s.roles.SwitchUserRole(ctx, userID, targetRoleID, sessionID, restaurantContextID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	snapshot, err := s.snapshot(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	signed, err := s.tokens.Generate(ctx, token.GenerateParams{
		User:           user,
		Session:        sess,
		CurrentRole:    *role,
		AvailableRoles: snapshot.available,
		Restaurant:     snapshot.restaurant,
		Permissions:    snapshot.permissions,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:          signed,
		User:           user,
		CurrentRole:    *role,
		AvailableRoles: snapshot.available,
		Restaurant:     snapshot.restaurant,
		Permissions:    snapshot.permissions,
		Session:        sess,
	}, nil
}

// InvalidateUser force-ends every session the user holds. Used by admin
// tooling after a compromise or deactivation.
func (s *Service) InvalidateUser(ctx context.Context, userID string) error {
	return s.sessions.InvalidateAllForUser(ctx, userID)
}

type identitySnapshot struct {
	available   []roles.UserRole
	permissions []string
	restaurant  *restaurants.Restaurant
}

func (s *Service) snapshot(ctx context.Context, userID string, role *roles.UserRole) (*identitySnapshot, error) {
	available, err := s.roles.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: list roles: %w", err)
	}
	perms, err := s.permissions.EffectivePermissionList(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: compute permissions: %w", err)
	}

	var restaurant *restaurants.Restaurant
	if role.RestaurantID != nil {
		restaurant, err = s.restaurants.Get(ctx, *role.RestaurantID)
		if err != nil {
			if errors.Is(err, authkit.ErrNotFound) {
				return nil, authkit.ErrRestaurantInactive
			}
			return nil, fmt.Errorf("auth: load restaurant: %w", err)
		}
		if !restaurant.IsActive {
			return nil, authkit.ErrRestaurantInactive
		}
		if err := restaurants.ValidateCurrency(restaurant.Currency); err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
	}
	return &identitySnapshot{available: available, permissions: perms, restaurant: restaurant}, nil
}
