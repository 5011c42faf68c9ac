package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v4"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/restaurants"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
	"github.com/atiff-automation/QR-Eat-sub000/internal/users"
)

// LegacyClaims is the minimal payload the prior scheme signed. The new-format
// fields (currentRole, permissions, sessionId) are what distinguish current
// tokens from legacy ones.
type LegacyClaims struct {
	UserID       string  `json:"userId"`
	UserType     string  `json:"userType"`
	RestaurantID *string `json:"restaurantId,omitempty"`
	Email        string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RoleSource selects the role a legacy credential upgrades into.
type RoleSource interface {
	BestRole(ctx context.Context, userID string, hintType roles.UserType, hintRestaurant *string) (*roles.UserRole, error)
	ListUserRoles(ctx context.Context, userID string) ([]roles.UserRole, error)
}

// UserSource resolves the account behind a legacy credential.
type UserSource interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// PermissionSource computes the effective permission list to snapshot.
type PermissionSource interface {
	EffectivePermissionList(ctx context.Context, userID string) ([]string, error)
}

// RestaurantSource resolves the tenant embedded in the upgraded token.
type RestaurantSource interface {
	Get(ctx context.Context, id string) (*restaurants.Restaurant, error)
}

// UpgradeRecorder notes upgrades in the audit trail; never fails the caller.
type UpgradeRecorder interface {
	LogSecurityEvent(ctx context.Context, severity, action, userID string, meta map[string]any)
}

// MigrationReport summarises bridge traffic for the rollout dashboard.
type MigrationReport struct {
	LegacySeen    int64 `json:"legacySeen"`
	CurrentSeen   int64 `json:"currentSeen"`
	Upgraded      int64 `json:"upgraded"`
	UpgradeFailed int64 `json:"upgradeFailed"`
}

// Bridge validates tokens issued by the prior single-role scheme and upgrades
// them into a current session plus token. Purely additive: once every client
// holds a current-format token this code path goes quiet.
type Bridge struct {
	secret     []byte
	service    *Service
	sessions   SessionStore
	roleSource RoleSource
	userSource UserSource
	permSource PermissionSource
	restSource RestaurantSource
	audit      UpgradeRecorder
	logger     *slog.Logger

	legacySeen    atomic.Int64
	currentSeen   atomic.Int64
	upgraded      atomic.Int64
	upgradeFailed atomic.Int64
}

// NewBridge constructs a Bridge sharing the service's signing secret.
func NewBridge(secret string, service *Service, sessions SessionStore, rs RoleSource, us UserSource, ps PermissionSource, rest RestaurantSource, audit UpgradeRecorder, logger *slog.Logger) *Bridge {
	return &Bridge{
		secret:     []byte(secret),
		service:    service,
		sessions:   sessions,
		roleSource: rs,
		userSource: us,
		permSource: ps,
		restSource: rest,
		audit:      audit,
		logger:     logger,
	}
}

// Classify decodes a token under the shared secret and reports whether it is
// a legacy credential. Tokens carrying any new-format field are not legacy.
func (b *Bridge) Classify(tokenString string) (*LegacyClaims, error) {
	var raw jwt.MapClaims
	tok, err := jwt.ParseWithClaims(tokenString, &raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, authkit.ErrInvalidToken
	}

	if hasAny(raw, "currentRole", "permissions", "sessionId") {
		b.currentSeen.Add(1)
		return nil, authkit.ErrInvalidToken
	}
	userID, _ := raw["userId"].(string)
	userType, _ := raw["userType"].(string)
	if userID == "" || userType == "" {
		return nil, authkit.ErrInvalidToken
	}

	claims := &LegacyClaims{UserID: userID, UserType: userType}
	if email, ok := raw["email"].(string); ok {
		claims.Email = email
	}
	if rid, ok := raw["restaurantId"].(string); ok && rid != "" {
		claims.RestaurantID = &rid
	}
	b.legacySeen.Add(1)
	return claims, nil
}

// Upgrade exchanges a legacy credential for a current session and token. The
// legacy userType/restaurantId hints pick the role; otherwise the user's
// highest-priority role wins.
func (b *Bridge) Upgrade(ctx context.Context, tokenString, ip, ua string) (string, *session.Session, error) {
	legacy, err := b.Classify(tokenString)
	if err != nil {
		return "", nil, err
	}

	signed, sess, err := b.upgrade(ctx, legacy, ip, ua)
	if err != nil {
		b.upgradeFailed.Add(1)
		return "", nil, err
	}
	b.upgraded.Add(1)
	b.audit.LogSecurityEvent(ctx, "info", "legacy.token_upgraded", legacy.UserID, map[string]any{
		"session_id": sess.ID,
		"user_type":  legacy.UserType,
	})
	return signed, sess, nil
}

func (b *Bridge) upgrade(ctx context.Context, legacy *LegacyClaims, ip, ua string) (string, *session.Session, error) {
	user, err := b.userSource.Get(ctx, legacy.UserID)
	if err != nil {
		return "", nil, authkit.ErrInvalidToken
	}

	role, err := b.roleSource.BestRole(ctx, user.ID, roles.UserType(legacy.UserType), legacy.RestaurantID)
	if err != nil {
		return "", nil, err
	}
	available, err := b.roleSource.ListUserRoles(ctx, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("token: list roles: %w", err)
	}
	perms, err := b.permSource.EffectivePermissionList(ctx, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("token: compute permissions: %w", err)
	}

	var restaurant *restaurants.Restaurant
	if role.RestaurantID != nil {
		restaurant, err = b.restSource.Get(ctx, *role.RestaurantID)
		if err != nil {
			return "", nil, fmt.Errorf("token: load restaurant: %w", err)
		}
		if err := restaurants.ValidateCurrency(restaurant.Currency); err != nil {
			return "", nil, fmt.Errorf("token: %w", err)
		}
	}

	sess, err := b.sessions.Create(ctx, session.CreateParams{
		UserID:              user.ID,
		CurrentRoleID:       role.ID,
		RestaurantContextID: role.RestaurantID,
		Permissions:         perms,
		IPAddress:           ip,
		UserAgent:           ua,
	})
	if err != nil {
		return "", nil, fmt.Errorf("token: create session: %w", err)
	}

	signed, err := b.service.Generate(ctx, GenerateParams{
		User:           user,
		Session:        sess,
		CurrentRole:    *role,
		AvailableRoles: available,
		Restaurant:     restaurant,
		Permissions:    perms,
	})
	if err != nil {
		return "", nil, err
	}
	return signed, sess, nil
}

// Report returns the bridge's migration counters.
func (b *Bridge) Report() MigrationReport {
	return MigrationReport{
		LegacySeen:    b.legacySeen.Load(),
		CurrentSeen:   b.currentSeen.Load(),
		Upgraded:      b.upgraded.Load(),
		UpgradeFailed: b.upgradeFailed.Load(),
	}
}

func hasAny(m jwt.MapClaims, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
