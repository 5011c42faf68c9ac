// Package audit records every security-relevant event as an append-only
// trail. Writes never fail the calling operation.
package audit

import "time"

// Known action vocabulary. The integrity check flags anything outside it.
const (
	ActionLogin              = "auth.login"
	ActionLoginFailed        = "auth.login_failed"
	ActionLogout             = "auth.logout"
	ActionTokenRefresh       = "auth.token_refresh"
	ActionSessionExpired     = "auth.session_expired"
	ActionRoleSwitch         = "role.switch"
	ActionRoleAssigned       = "role.assigned"
	ActionRoleRemoved        = "role.removed"
	ActionRolePermsChanged   = "role.permissions_changed"
	ActionPermissionDenied   = "permission.denied"
	ActionSecurityEvent      = "security.event"
	ActionLegacyTokenUpgrade = "legacy.token_upgraded"
)

// KnownActions lists the action vocabulary.
func KnownActions() []string {
	return []string{
		ActionLogin, ActionLoginFailed, ActionLogout,
		ActionTokenRefresh, ActionSessionExpired,
		ActionRoleSwitch, ActionRoleAssigned, ActionRoleRemoved, ActionRolePermsChanged,
		ActionPermissionDenied, ActionSecurityEvent, ActionLegacyTokenUpgrade,
	}
}

// Entry is one immutable audit record. Never updated; removed only by the
// retention sweep.
type Entry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource,omitempty"`
	Severity     string         `json:"severity"`
	FromRole     string         `json:"fromRole,omitempty"`
	ToRole       string         `json:"toRole,omitempty"`
	RestaurantID string         `json:"restaurantId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// RequestInfo carries the client attribution recorded with an event.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// TrailFilters narrows trail queries.
type TrailFilters struct {
	Action   string
	Severity string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// Summary aggregates a user's or restaurant's recent trail.
type Summary struct {
	ByAction       map[string]int64 `json:"byAction"`
	BySeverity     map[string]int64 `json:"bySeverity"`
	FailedAttempts int64            `json:"failedAttempts"`
	Recent         []Entry          `json:"recent"`
}

// Statistics reports audit volume for the operations dashboard.
type Statistics struct {
	LastDay    int64         `json:"lastDay"`
	LastWeek   int64         `json:"lastWeek"`
	LastMonth  int64         `json:"lastMonth"`
	TopActions []ActionCount `json:"topActions"`
	TopUsers   []UserCount   `json:"topUsers"`
}

// ActionCount pairs an action with its occurrence count.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// UserCount pairs a user with their event count.
type UserCount struct {
	UserID string `json:"userId"`
	Count  int64  `json:"count"`
}
