// Package token issues and verifies the signed bearer tokens that bind a
// request to a live session.
package token

import (
	"github.com/golang-jwt/jwt/v4"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// RoleClaim is the role snapshot embedded in a token.
type RoleClaim struct {
	ID                string   `json:"id"`
	UserType          string   `json:"userType"`
	RoleTemplate      string   `json:"roleTemplate"`
	RestaurantID      *string  `json:"restaurantId,omitempty"`
	CustomPermissions []string `json:"customPermissions"`
	IsActive          bool     `json:"isActive"`
}

// RestaurantClaim is the tenant snapshot embedded in a token.
type RestaurantClaim struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"isActive"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

// Claims is the full claim contract. Everything is required unless marked
// optional; Verify rejects any payload that fails ValidateShape.
type Claims struct {
	UserID            string           `json:"userId"`
	Email             string           `json:"email"`
	FirstName         string           `json:"firstName"`
	LastName          string           `json:"lastName"`
	CurrentRole       RoleClaim        `json:"currentRole"`
	AvailableRoles    []RoleClaim      `json:"availableRoles"`
	RestaurantContext *RestaurantClaim `json:"restaurantContext,omitempty"`
	Permissions       []string         `json:"permissions"`
	SessionID         string           `json:"sessionId"`
	jwt.RegisteredClaims
}

// ValidateShape checks the strict claim contract after a signature-valid
// parse. Partial shapes are rejected rather than trusted.
func (c *Claims) ValidateShape(issuer string) error {
	switch {
	case c.UserID == "",
		c.Email == "",
		c.SessionID == "",
		c.CurrentRole.ID == "",
		c.CurrentRole.UserType == "",
		c.CurrentRole.RoleTemplate == "",
		c.Permissions == nil,
		c.Subject != c.UserID,
		c.Issuer != issuer,
		c.ExpiresAt == nil,
		c.IssuedAt == nil:
		return authkit.ErrInvalidToken
	}
	for _, role := range c.AvailableRoles {
		if role.ID == "" || role.UserType == "" || role.RoleTemplate == "" {
			return authkit.ErrInvalidToken
		}
	}
	if c.RestaurantContext != nil && c.RestaurantContext.ID == "" {
		return authkit.ErrInvalidToken
	}
	return nil
}
