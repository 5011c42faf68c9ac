// Package jobs defines the background tasks and the Asynq worker that runs
// them: the expired-session sweep and the audit retention pass.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atiff-automation/QR-Eat-sub000/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionCleanup sweeps expired session rows.
	TaskSessionCleanup = "session:cleanup"
	// TaskAuditRetention deletes audit entries past the retention window.
	TaskAuditRetention = "audit:retention"
)

// SessionSweeper removes expired sessions. Idempotent.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// AuditRetention removes audit entries older than the retention window.
type AuditRetention interface {
	CleanupOld(ctx context.Context, retentionDays int) (int64, error)
}

// NewSessionCleanupTask constructs the sweep task. It carries no payload.
func NewSessionCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskSessionCleanup, nil), nil
}

// AuditRetentionPayload parameterises one retention pass.
type AuditRetentionPayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuditRetentionTask constructs a retention task.
func NewAuditRetentionTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditRetentionPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// SessionCleanupJob handles TaskSessionCleanup.
type SessionCleanupJob struct {
	sweeper SessionSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionCleanupJob constructs the job.
func NewSessionCleanupJob(sweeper SessionSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionCleanupJob {
	return &SessionCleanupJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle runs one sweep. Expiry is also enforced at read time, so a failed or
// delayed sweep never admits an expired session.
func (j *SessionCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("session_cleanup")
	removed, err := j.sweeper.CleanupExpired(ctx)
	if err != nil {
		return tracker.End(err)
	}
	if j.logger != nil {
		j.logger.Info("session sweep completed", slog.Int64("removed", removed))
	}
	return tracker.End(nil)
}

// AuditRetentionJob handles TaskAuditRetention.
type AuditRetentionJob struct {
	service AuditRetention
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditRetentionJob constructs the job.
func NewAuditRetentionJob(service AuditRetention, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{service: service, logger: logger, metrics: metrics}
}

// Handle runs one retention pass.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("audit_retention")
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	removed, err := j.service.CleanupOld(ctx, payload.RetentionDays)
	if err != nil {
		return tracker.End(err)
	}
	if j.logger != nil {
		j.logger.Info("audit retention completed",
			slog.Int("retention_days", payload.RetentionDays),
			slog.Int64("removed", removed))
	}
	return tracker.End(nil)
}
