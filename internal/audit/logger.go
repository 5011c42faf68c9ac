package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// WriteRepository appends entries to the trail.
type WriteRepository interface {
	Insert(ctx context.Context, entry Entry) error
}

// Logger is the append-only writer, one method per event category. Every
// write failure is swallowed after a local log line; audit logging must never
// cause the calling operation to fail.
type Logger struct {
	repo   WriteRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLogger constructs a Logger.
func NewLogger(repo WriteRepository, logger *slog.Logger) *Logger {
	return &Logger{repo: repo, logger: logger, now: time.Now}
}

// LogAuthentication records a successful login.
func (l *Logger) LogAuthentication(ctx context.Context, userID string, req RequestInfo) {
	l.write(ctx, Entry{UserID: userID, Action: ActionLogin, Severity: "info",
		IPAddress: req.IPAddress, UserAgent: req.UserAgent})
}

// LogAuthenticationFailure records a failed login or token verification. The
// precise reason lives here, never in the response to the caller.
func (l *Logger) LogAuthenticationFailure(ctx context.Context, userID, reason string, req RequestInfo) {
	l.write(ctx, Entry{UserID: userID, Action: ActionLoginFailed, Severity: "warning",
		Metadata:  map[string]any{"reason": reason},
		IPAddress: req.IPAddress, UserAgent: req.UserAgent})
}

// LogRoleSwitch records a role switch.
func (l *Logger) LogRoleSwitch(ctx context.Context, userID, fromRole, toRole string, meta map[string]any) {
	l.write(ctx, Entry{UserID: userID, Action: ActionRoleSwitch, Severity: "info",
		FromRole: fromRole, ToRole: toRole, Metadata: meta})
}

// LogPermissionDenied records an authorization denial.
func (l *Logger) LogPermissionDenied(ctx context.Context, userID, permission, resource string, req RequestInfo) {
	l.write(ctx, Entry{UserID: userID, Action: ActionPermissionDenied, Severity: "warning",
		Resource:  resource,
		Metadata:  map[string]any{"permission": permission},
		IPAddress: req.IPAddress, UserAgent: req.UserAgent})
}

// LogLogout records an explicit logout.
func (l *Logger) LogLogout(ctx context.Context, userID string, req RequestInfo) {
	l.write(ctx, Entry{UserID: userID, Action: ActionLogout, Severity: "info",
		IPAddress: req.IPAddress, UserAgent: req.UserAgent})
}

// LogTokenRefresh records a rotation.
func (l *Logger) LogTokenRefresh(ctx context.Context, userID, oldSessionID, newSessionID string, req RequestInfo) {
	l.write(ctx, Entry{UserID: userID, Action: ActionTokenRefresh, Severity: "info",
		Metadata:  map[string]any{"old_session_id": oldSessionID, "new_session_id": newSessionID},
		IPAddress: req.IPAddress, UserAgent: req.UserAgent})
}

// LogSessionExpired records a verification that failed on an expired session.
func (l *Logger) LogSessionExpired(ctx context.Context, userID, sessionID string) {
	l.write(ctx, Entry{UserID: userID, Action: ActionSessionExpired, Severity: "info",
		Metadata: map[string]any{"session_id": sessionID}})
}

// LogSecurityEvent records a free-form security event at a given severity.
func (l *Logger) LogSecurityEvent(ctx context.Context, severity, action, userID string, meta map[string]any) {
	if action == "" {
		action = ActionSecurityEvent
	}
	l.write(ctx, Entry{UserID: userID, Action: action, Severity: severity, Metadata: meta})
}

// LogUserRoleChange records a role assignment mutation.
func (l *Logger) LogUserRoleChange(ctx context.Context, actorID, targetUserID, action, roleTemplate string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["actor_id"] = actorID
	meta["role_template"] = roleTemplate
	l.write(ctx, Entry{UserID: targetUserID, Action: action, Severity: "info", Metadata: meta})
}

func (l *Logger) write(ctx context.Context, entry Entry) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = l.now().UTC()
	if err := l.repo.Insert(ctx, entry); err != nil && l.logger != nil {
		l.logger.Warn("audit write failed",
			slog.String("action", entry.Action),
			slog.String("user_id", entry.UserID),
			slog.Any("error", err))
	}
}
