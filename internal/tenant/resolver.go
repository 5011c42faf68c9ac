package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	"github.com/atiff-automation/QR-Eat-sub000/internal/token"

	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
)

// CookieName is the canonical token cookie. Legacy cookie names are consulted
// only by the legacy bridge.
const CookieName = "qr_rbac_token"

// LegacyCookieNames lists the cookie names the prior scheme issued under.
var LegacyCookieNames = []string{"qr_auth_token", "auth_token"}

// Trusted identity headers set by an upstream gateway that has already run
// token verification.
const (
	HeaderUserID         = "x-user-id"
	HeaderUserType       = "x-user-type"
	HeaderUserEmail      = "x-user-email"
	HeaderIsAdmin        = "x-is-admin"
	HeaderRestaurantID   = "x-restaurant-id"
	HeaderRestaurantSlug = "x-restaurant-slug"
	HeaderOwnerID        = "x-owner-id"
	HeaderRoleTemplate   = "x-role-template"
	HeaderPermissions    = "x-user-permissions"
)

// Verifier is the slow-path token check.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
}

// Resolver materialises a Context from either pre-validated gateway headers
// (fast path) or a full token verification (slow path). The fast path only
// activates when trustHeaders is set; identity headers from an untrusted
// client are otherwise ignored.
type Resolver struct {
	tokens       Verifier
	trustHeaders bool
}

// NewResolver constructs a Resolver.
func NewResolver(tokens Verifier, trustHeaders bool) *Resolver {
	return &Resolver{tokens: tokens, trustHeaders: trustHeaders}
}

// FromRequest picks the fast path when trusted headers are present, otherwise
// verifies the bearer credential itself.
func (r *Resolver) FromRequest(ctx context.Context, req *http.Request) (*Context, error) {
	if r.trustHeaders && req.Header.Get(HeaderUserID) != "" {
		return r.FromTrustedHeaders(req)
	}
	tokenString := BearerToken(req)
	if tokenString == "" {
		return nil, authkit.ErrInvalidToken
	}
	return r.FromToken(ctx, tokenString)
}

// FromTrustedHeaders builds a Context from gateway-injected headers.
func (r *Resolver) FromTrustedHeaders(req *http.Request) (*Context, error) {
	userID := strings.TrimSpace(req.Header.Get(HeaderUserID))
	userType := roles.UserType(strings.TrimSpace(req.Header.Get(HeaderUserType)))
	if userID == "" || !userType.Valid() {
		return nil, authkit.ErrMissingTenantContext
	}

	tc := &Context{
		UserID:         userID,
		UserType:       userType,
		Email:          req.Header.Get(HeaderUserEmail),
		RoleTemplate:   req.Header.Get(HeaderRoleTemplate),
		IsAdmin:        req.Header.Get(HeaderIsAdmin) == "true",
		RestaurantSlug: req.Header.Get(HeaderRestaurantSlug),
	}
	if rid := strings.TrimSpace(req.Header.Get(HeaderRestaurantID)); rid != "" {
		tc.RestaurantID = &rid
	}
	if oid := strings.TrimSpace(req.Header.Get(HeaderOwnerID)); oid != "" {
		tc.OwnerID = &oid
	}
	if raw := req.Header.Get(HeaderPermissions); raw != "" {
		var perms []string
		if err := json.Unmarshal([]byte(raw), &perms); err != nil {
			return nil, authkit.ErrMissingTenantContext
		}
		tc.Permissions = permissions.NewSet(perms)
	} else {
		tc.Permissions = permissions.NewSet(nil)
	}

	return tc, validate(tc)
}

// FromToken runs full verification and builds a Context from the claims.
func (r *Resolver) FromToken(ctx context.Context, tokenString string) (*Context, error) {
	claims, err := r.tokens.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return r.FromClaims(claims)
}

// FromClaims builds a Context from already-verified claims.
func (r *Resolver) FromClaims(claims *token.Claims) (*Context, error) {
	userType := roles.UserType(claims.CurrentRole.UserType)
	tc := &Context{
		UserID:       claims.UserID,
		UserType:     userType,
		Email:        claims.Email,
		RestaurantID: claims.CurrentRole.RestaurantID,
		RoleTemplate: claims.CurrentRole.RoleTemplate,
		Permissions:  permissions.NewSet(claims.Permissions),
		IsAdmin:      userType == roles.UserTypePlatformAdmin,
		SessionID:    claims.SessionID,
	}
	if claims.RestaurantContext != nil {
		tc.RestaurantSlug = claims.RestaurantContext.Slug
		if tc.RestaurantID == nil {
			tc.RestaurantID = &claims.RestaurantContext.ID
		}
	}
	return tc, validate(tc)
}

// BearerToken extracts the credential from the canonical cookie or the
// Authorization header.
func BearerToken(req *http.Request) string {
	if cookie, err := req.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := req.Header.Get("Authorization")
	if parts := strings.SplitN(auth, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// LegacyToken pulls a credential from the legacy cookie names. Only the
// legacy bridge consults these.
func LegacyToken(req *http.Request) string {
	for _, name := range LegacyCookieNames {
		if cookie, err := req.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// validate enforces the context invariants: admins need no restaurant,
// everyone else needs both a user and a restaurant. Absence is a typed error,
// never a silent default.
func validate(tc *Context) error {
	if tc.UserID == "" {
		return authkit.ErrMissingTenantContext
	}
	if tc.UserType == roles.UserTypePlatformAdmin {
		tc.IsAdmin = true
		return nil
	}
	if tc.RestaurantID == nil || *tc.RestaurantID == "" {
		return authkit.ErrMissingTenantContext
	}
	return nil
}
