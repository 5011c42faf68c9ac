package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	entries []Entry

	insertError error
}

func (m *mockRepository) Insert(ctx context.Context, entry Entry) error {
	if m.insertError != nil {
		return m.insertError
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockRepository) Trail(ctx context.Context, userID string, f TrailFilters) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Severity != "" && e.Severity != f.Severity {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockRepository) RestaurantTrail(ctx context.Context, restaurantID string, f TrailFilters) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.RestaurantID == restaurantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRepository) CountsByAction(ctx context.Context, userID string, since time.Time) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, e := range m.entries {
		if e.UserID == userID && e.CreatedAt.After(since) {
			counts[e.Action]++
		}
	}
	return counts, nil
}

func (m *mockRepository) CountsBySeverity(ctx context.Context, userID string, since time.Time) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, e := range m.entries {
		if e.UserID == userID && e.CreatedAt.After(since) {
			counts[e.Severity]++
		}
	}
	return counts, nil
}

func (m *mockRepository) CountByActionGlobal(ctx context.Context, action string, since time.Time) (int64, error) {
	var n int64
	for _, e := range m.entries {
		if e.Action == action && e.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepository) VolumeSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	for _, e := range m.entries {
		if e.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) TopActions(ctx context.Context, since time.Time, limit int) ([]ActionCount, error) {
	counts := make(map[string]int64)
	for _, e := range m.entries {
		if e.CreatedAt.After(since) {
			counts[e.Action]++
		}
	}
	var out []ActionCount
	for action, n := range counts {
		out = append(out, ActionCount{Action: action, Count: n})
	}
	return out, nil
}

func (m *mockRepository) TopUsers(ctx context.Context, since time.Time, limit int) ([]UserCount, error) {
	counts := make(map[string]int64)
	for _, e := range m.entries {
		if e.CreatedAt.After(since) {
			counts[e.UserID]++
		}
	}
	var out []UserCount
	for userID, n := range counts {
		out = append(out, UserCount{UserID: userID, Count: n})
	}
	return out, nil
}

func (m *mockRepository) DistinctActions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range m.entries {
		if _, ok := seen[e.Action]; !ok {
			seen[e.Action] = struct{}{}
			out = append(out, e.Action)
		}
	}
	return out, nil
}

func (m *mockRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []Entry
	var n int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

func TestLoggerWritesEntries(t *testing.T) {
	repo := &mockRepository{}
	logger := NewLogger(repo, slog.Default())
	ctx := context.Background()
	req := RequestInfo{IPAddress: "10.0.0.1", UserAgent: "test"}

	logger.LogAuthentication(ctx, "u1", req)
	logger.LogAuthenticationFailure(ctx, "u1", "invalid credentials", req)
	logger.LogRoleSwitch(ctx, "u1", "r1", "r2", nil)
	logger.LogPermissionDenied(ctx, "u1", "roles:manage", "/roles", req)
	logger.LogLogout(ctx, "u1", req)
	logger.LogTokenRefresh(ctx, "u1", "s1", "s2", req)
	logger.LogSessionExpired(ctx, "u1", "s1")
	logger.LogSecurityEvent(ctx, "info", ActionLegacyTokenUpgrade, "u1", nil)
	logger.LogUserRoleChange(ctx, "admin", "u1", ActionRoleAssigned, "waiter", nil)

	require.Len(t, repo.entries, 9)
	for _, e := range repo.entries {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
		assert.Contains(t, KnownActions(), e.Action)
	}

	failure := repo.entries[1]
	assert.Equal(t, ActionLoginFailed, failure.Action)
	assert.Equal(t, "warning", failure.Severity)
	assert.Equal(t, "invalid credentials", failure.Metadata["reason"])

	change := repo.entries[8]
	assert.Equal(t, "u1", change.UserID)
	assert.Equal(t, "admin", change.Metadata["actor_id"])
	assert.Equal(t, "waiter", change.Metadata["role_template"])
}

func TestLoggerSwallowsInsertFailure(t *testing.T) {
	repo := &mockRepository{insertError: errors.New("db down")}
	logger := NewLogger(repo, slog.Default())

	// Must not panic or surface the failure to the caller.
	logger.LogAuthentication(context.Background(), "u1", RequestInfo{})
	assert.Empty(t, repo.entries)
}

func TestLoggerSecurityEventDefaultsAction(t *testing.T) {
	repo := &mockRepository{}
	logger := NewLogger(repo, slog.Default())

	logger.LogSecurityEvent(context.Background(), "critical", "", "u1", nil)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, ActionSecurityEvent, repo.entries[0].Action)
}

func seededService(now time.Time) (*Service, *mockRepository) {
	repo := &mockRepository{entries: []Entry{
		{ID: "1", UserID: "u1", Action: ActionLogin, Severity: "info", CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "2", UserID: "u1", Action: ActionLoginFailed, Severity: "warning", CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "3", UserID: "u1", Action: ActionLoginFailed, Severity: "warning", CreatedAt: now.AddDate(0, 0, -3)},
		{ID: "4", UserID: "u1", Action: ActionLogin, Severity: "info", CreatedAt: now.AddDate(0, 0, -45)},
		{ID: "5", UserID: "u2", Action: ActionRoleSwitch, Severity: "info", CreatedAt: now.AddDate(0, 0, -1)},
	}}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc, repo
}

func TestSummary(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(now)

	summary, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	// The 45-day-old login falls outside the 30-day window.
	assert.Equal(t, int64(1), summary.ByAction[ActionLogin])
	assert.Equal(t, int64(2), summary.ByAction[ActionLoginFailed])
	assert.Equal(t, int64(2), summary.FailedAttempts)
	assert.Equal(t, int64(2), summary.BySeverity["warning"])
	assert.NotEmpty(t, summary.Recent)
}

func TestStatistics(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(now)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.LastDay)
	assert.Equal(t, int64(4), stats.LastWeek)
	assert.Equal(t, int64(4), stats.LastMonth)
	assert.NotEmpty(t, stats.TopActions)
	assert.NotEmpty(t, stats.TopUsers)
}

func TestCleanupOld(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc, repo := seededService(now)

	n, err := svc.CleanupOld(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.entries, 4)

	// Non-positive retention falls back to the 90-day default.
	n, err = svc.CleanupOld(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckIntegrity(t *testing.T) {
	now := time.Now()
	svc, repo := seededService(now)

	unknown, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unknown)

	repo.entries = append(repo.entries, Entry{ID: "x", UserID: "u1", Action: "mystery.event", CreatedAt: now})
	unknown, err = svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mystery.event"}, unknown)
}

func TestTrailFilters(t *testing.T) {
	now := time.Now()
	svc, _ := seededService(now)

	entries, err := svc.Trail(context.Background(), "u1", TrailFilters{Action: ActionLoginFailed})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = svc.Trail(context.Background(), "u1", TrailFilters{Severity: "info"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExportJSON(t *testing.T) {
	entries := []Entry{{
		ID: "1", UserID: "u1", Action: ActionLogin, Severity: "info",
		Metadata:  map[string]any{"reason": "ok"},
		CreatedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}}
	out, err := ExportJSON(entries)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "u1", decoded[0]["userId"])
	assert.Equal(t, "2026-09-01T12:00:00Z", decoded[0]["createdAt"])
}

func TestExportCSV(t *testing.T) {
	entries := []Entry{
		{ID: "1", UserID: "u1", Action: ActionLogin, Severity: "info", CreatedAt: time.Now()},
		{ID: "2", UserID: "u2", Action: ActionLogout, Severity: "info", CreatedAt: time.Now()},
	}
	out, err := ExportCSV(entries)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,user_id,action"))
	assert.Contains(t, lines[1], ActionLogin)
}
