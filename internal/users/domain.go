// Package users provides the account lookups the auth core builds claims from.
package users

import "time"

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
