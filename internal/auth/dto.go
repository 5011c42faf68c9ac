package auth

import (
	"time"

	"github.com/atiff-automation/QR-Eat-sub000/internal/restaurants"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
)

type rolePayload struct {
	ID                string   `json:"id"`
	UserType          string   `json:"userType"`
	RoleTemplate      string   `json:"roleTemplate"`
	RestaurantID      *string  `json:"restaurantId,omitempty"`
	CustomPermissions []string `json:"customPermissions"`
	IsActive          bool     `json:"isActive"`
}

type restaurantPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"isActive"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type sessionPayload struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type userPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type credentialPayload struct {
	Token          string             `json:"token"`
	User           userPayload        `json:"user"`
	CurrentRole    rolePayload        `json:"currentRole"`
	AvailableRoles []rolePayload      `json:"availableRoles"`
	Restaurant     *restaurantPayload `json:"restaurantContext,omitempty"`
	Permissions    []string           `json:"permissions"`
	Session        sessionPayload     `json:"session"`
}

func loginResponse(result *LoginResult) credentialPayload {
	payload := credentialPayload{
		Token: result.Token,
		User: userPayload{
			ID:        result.User.ID,
			Email:     result.User.Email,
			FirstName: result.User.FirstName,
			LastName:  result.User.LastName,
		},
		CurrentRole:    rolePayloadFrom(result.CurrentRole),
		AvailableRoles: make([]rolePayload, len(result.AvailableRoles)),
		Permissions:    result.Permissions,
		Session: sessionPayload{
			ID:        result.Session.ID,
			ExpiresAt: result.Session.ExpiresAt.UTC(),
		},
	}
	for i, role := range result.AvailableRoles {
		payload.AvailableRoles[i] = rolePayloadFrom(role)
	}
	if result.Permissions == nil {
		payload.Permissions = []string{}
	}
	if result.Restaurant != nil {
		payload.Restaurant = restaurantPayloadFrom(result.Restaurant)
	}
	return payload
}

func rolePayloadFrom(role roles.UserRole) rolePayload {
	custom := role.CustomPermissions
	if custom == nil {
		custom = []string{}
	}
	return rolePayload{
		ID:                role.ID,
		UserType:          string(role.UserType),
		RoleTemplate:      role.RoleTemplate,
		RestaurantID:      role.RestaurantID,
		CustomPermissions: custom,
		IsActive:          role.IsActive,
	}
}

func restaurantPayloadFrom(r *restaurants.Restaurant) *restaurantPayload {
	return &restaurantPayload{
		ID:       r.ID,
		Name:     r.Name,
		Slug:     r.Slug,
		IsActive: r.IsActive,
		Timezone: r.Timezone,
		Currency: r.Currency,
	}
}
