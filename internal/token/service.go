package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/restaurants"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
	"github.com/atiff-automation/QR-Eat-sub000/internal/users"
)

// SessionStore is the slice of the session store the token service drives.
type SessionStore interface {
	Create(ctx context.Context, params session.CreateParams) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	SetTokenHash(ctx context.Context, id, hash string) error
	Touch(ctx context.Context, id string) error
	Invalidate(ctx context.Context, id string) error
}

// ExpiryRecorder receives session-expiry events for the audit trail.
type ExpiryRecorder interface {
	LogSessionExpired(ctx context.Context, userID, sessionID string)
}

// Service signs and verifies bearer tokens with a single shared HMAC secret
// and fixed issuer. A cryptographically valid token is still refused unless
// its session row is alive and carries the matching token hash.
type Service struct {
	secret   []byte
	issuer   string
	sessions SessionStore
	audit    ExpiryRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(secret, issuer string, sessions SessionStore, logger *slog.Logger) *Service {
	return &Service{
		secret:   []byte(secret),
		issuer:   issuer,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// WithAudit attaches an expiry recorder. The service works without one.
func (s *Service) WithAudit(rec ExpiryRecorder) *Service {
	s.audit = rec
	return s
}

// HashToken returns the one-way hash stored on the session row. The plaintext
// token never touches the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateParams collects the identity snapshot a token carries.
type GenerateParams struct {
	User           *users.User
	Session        *session.Session
	CurrentRole    roles.UserRole
	AvailableRoles []roles.UserRole
	Restaurant     *restaurants.Restaurant
	Permissions    []string
}

// Generate signs a token bound to the given session and stores its hash on
// the session row. The token expires when the session does.
func (s *Service) Generate(ctx context.Context, p GenerateParams) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID:         p.User.ID,
		Email:          p.User.Email,
		FirstName:      p.User.FirstName,
		LastName:       p.User.LastName,
		CurrentRole:    roleClaim(p.CurrentRole),
		AvailableRoles: roleClaims(p.AvailableRoles),
		Permissions:    p.Permissions,
		SessionID:      p.Session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(p.Session.ExpiresAt),
		},
	}
	if p.Restaurant != nil {
		claims.RestaurantContext = &RestaurantClaim{
			ID:       p.Restaurant.ID,
			Name:     p.Restaurant.Name,
			Slug:     p.Restaurant.Slug,
			IsActive: p.Restaurant.IsActive,
			Timezone: p.Restaurant.Timezone,
			Currency: p.Restaurant.Currency,
		}
	}
	if claims.Permissions == nil {
		claims.Permissions = []string{}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	if err := s.sessions.SetTokenHash(ctx, p.Session.ID, HashToken(signed)); err != nil {
		return "", fmt.Errorf("token: bind hash: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry, validates the claim shape, then
// re-derives the session and requires the stored token hash to match. A token
// whose session was deleted or superseded fails even with a valid signature.
// On success lastActivity is advanced.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		if errors.Is(err, authkit.ErrSessionExpired) && claims != nil {
			s.auditExpired(ctx, claims)
		}
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, authkit.ErrNotFound) {
			return nil, authkit.ErrInvalidToken
		}
		if errors.Is(err, authkit.ErrSessionExpired) {
			s.auditExpired(ctx, claims)
			return nil, authkit.ErrSessionExpired
		}
		return nil, fmt.Errorf("token: load session: %w", err)
	}
	if sess.TokenHash == "" || sess.TokenHash != HashToken(tokenString) {
		return nil, authkit.ErrInvalidToken
	}

	if err := s.sessions.Touch(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("token: touch session: %w", err)
	}
	return claims, nil
}

// Refresh rotates a credential: the old session is replaced by a fresh one
// and a brand-new token is issued. The old token's hash no longer exists
// anywhere, so it is unusable the moment Refresh returns.
func (s *Service) Refresh(ctx context.Context, oldToken string) (string, *Claims, error) {
	claims, err := s.Verify(ctx, oldToken)
	if err != nil {
		return "", nil, err
	}

	var restaurantCtx *string
	if claims.RestaurantContext != nil {
		restaurantCtx = &claims.RestaurantContext.ID
	}

	// Create replaces every session the user holds, the old one included.
	sess, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:              claims.UserID,
		CurrentRoleID:       claims.CurrentRole.ID,
		RestaurantContextID: restaurantCtx,
		Permissions:         claims.Permissions,
	})
	if err != nil {
		return "", nil, fmt.Errorf("token: rotate session: %w", err)
	}

	now := s.now().UTC()
	fresh := *claims
	fresh.SessionID = sess.ID
	fresh.IssuedAt = jwt.NewNumericDate(now)
	fresh.ExpiresAt = jwt.NewNumericDate(sess.ExpiresAt)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, fresh).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign refreshed: %w", err)
	}
	if err := s.sessions.SetTokenHash(ctx, sess.ID, HashToken(signed)); err != nil {
		return "", nil, fmt.Errorf("token: bind refreshed hash: %w", err)
	}
	return signed, &fresh, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Claims decode before expiry validation, so the caller can
			// still see which session lapsed.
			return &claims, authkit.ErrSessionExpired
		}
		return nil, authkit.ErrInvalidToken
	}
	if !tok.Valid {
		return nil, authkit.ErrInvalidToken
	}
	if err := claims.ValidateShape(s.issuer); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *Service) auditExpired(ctx context.Context, claims *Claims) {
	if s.audit == nil || claims.SessionID == "" {
		return
	}
	s.audit.LogSessionExpired(ctx, claims.UserID, claims.SessionID)
}

func roleClaim(role roles.UserRole) RoleClaim {
	custom := role.CustomPermissions
	if custom == nil {
		custom = []string{}
	}
	return RoleClaim{
		ID:                role.ID,
		UserType:          string(role.UserType),
		RoleTemplate:      role.RoleTemplate,
		RestaurantID:      role.RestaurantID,
		CustomPermissions: custom,
		IsActive:          role.IsActive,
	}
}

func roleClaims(list []roles.UserRole) []RoleClaim {
	out := make([]RoleClaim, len(list))
	for i, role := range list {
		out[i] = roleClaim(role)
	}
	return out
}
