// Package session is the source of truth for credential liveness. A token is
// only as alive as the session row it is bound to.
package session

import "time"

// Session binds an issued token to a user, a current role and an expiry.
type Session struct {
	ID                  string
	UserID              string
	CurrentRoleID       string
	RestaurantContextID *string
	TokenHash           string
	Permissions         []string
	ExpiresAt           time.Time
	LastActivity        time.Time
	IPAddress           string
	UserAgent           string
	CreatedAt           time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
