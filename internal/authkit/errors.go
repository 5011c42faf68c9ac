// Package authkit defines the error vocabulary shared by the auth components.
package authkit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the auth core. Handlers collapse the
// authentication family into a single generic 401 response; the precise
// reason is recorded in the audit trail instead.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNoActiveRoles        = errors.New("no active roles")
	ErrInvalidToken         = errors.New("invalid token")
	ErrSessionExpired       = errors.New("session expired")
	ErrRoleAlreadyExists    = errors.New("role already exists")
	ErrRestaurantInactive   = errors.New("restaurant inactive or not found")
	ErrMissingTenantContext = errors.New("missing tenant context")
	ErrNotFound             = errors.New("not found")
)

// PermissionDeniedError reports the specific missing permission. Authenticated
// callers already know the resource boundary, so this one is not collapsed.
type PermissionDeniedError struct {
	Permission string
	Resource   string
}

func (e *PermissionDeniedError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("permission denied: %s on %s", e.Permission, e.Resource)
	}
	return fmt.Sprintf("permission denied: %s", e.Permission)
}

// PermissionDenied constructs a PermissionDeniedError.
func PermissionDenied(permission, resource string) error {
	return &PermissionDeniedError{Permission: permission, Resource: resource}
}

// IsPermissionDenied reports whether err is a permission denial.
func IsPermissionDenied(err error) bool {
	var pd *PermissionDeniedError
	return errors.As(err, &pd)
}

// RoleSwitchError reports why a role switch was refused.
type RoleSwitchError struct {
	Reason string
}

func (e *RoleSwitchError) Error() string {
	return "role switch failed: " + e.Reason
}

// RoleSwitchFailed constructs a RoleSwitchError.
func RoleSwitchFailed(reason string) error {
	return &RoleSwitchError{Reason: reason}
}

// FieldError describes a single invalid field on a mutating request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures for a mutating operation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validation constructs a ValidationError from field/message pairs.
func Validation(fields ...FieldError) error {
	return &ValidationError{Fields: fields}
}

// IsAuthenticationFailure reports whether err belongs to the family that must
// be presented to callers as a generic authentication failure.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrNoActiveRoles)
}
