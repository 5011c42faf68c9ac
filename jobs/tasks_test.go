package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSweeper struct {
	removed int64
	err     error
	calls   int
}

func (m *mockSweeper) CleanupExpired(ctx context.Context) (int64, error) {
	m.calls++
	return m.removed, m.err
}

type mockRetention struct {
	removed int64
	err     error
	days    int
}

func (m *mockRetention) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	m.days = retentionDays
	return m.removed, m.err
}

func TestSessionCleanupJob(t *testing.T) {
	sweeper := &mockSweeper{removed: 7}
	job := NewSessionCleanupJob(sweeper, slog.Default(), nil)

	task, err := NewSessionCleanupTask()
	require.NoError(t, err)
	assert.Equal(t, TaskSessionCleanup, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, sweeper.calls)
}

func TestSessionCleanupJobPropagatesFailure(t *testing.T) {
	sweeper := &mockSweeper{err: errors.New("db down")}
	job := NewSessionCleanupJob(sweeper, slog.Default(), nil)

	task, err := NewSessionCleanupTask()
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestAuditRetentionJob(t *testing.T) {
	retention := &mockRetention{removed: 42}
	job := NewAuditRetentionJob(retention, slog.Default(), nil)

	task, err := NewAuditRetentionTask(90)
	require.NoError(t, err)
	assert.Equal(t, TaskAuditRetention, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 90, retention.days)
}

func TestAuditRetentionJobBadPayload(t *testing.T) {
	job := NewAuditRetentionJob(&mockRetention{}, slog.Default(), nil)

	task := asynq.NewTask(TaskAuditRetention, []byte("not json"))
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestAuditRetentionJobPropagatesFailure(t *testing.T) {
	retention := &mockRetention{err: errors.New("db down")}
	job := NewAuditRetentionJob(retention, slog.Default(), nil)

	task, err := NewAuditRetentionTask(30)
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}
