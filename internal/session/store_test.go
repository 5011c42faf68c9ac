package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

type mockRepository struct {
	mu       sync.Mutex
	sessions map[string]*Session

	replaceError error
	getError     error
	deleted      []string
	deletedCh    chan string
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		sessions:  make(map[string]*Session),
		deletedCh: make(chan string, 8),
	}
}

func (m *mockRepository) ReplaceForUser(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceError != nil {
		return m.replaceError
	}
	for id, existing := range m.sessions {
		if existing.UserID == sess.UserID {
			delete(m.sessions, id)
		}
	}
	clone := *sess
	m.sessions[sess.ID] = &clone
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	sess, ok := m.sessions[id]
	if !ok {
		return nil, authkit.ErrNotFound
	}
	clone := *sess
	return &clone, nil
}

func (m *mockRepository) Update(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; !ok {
		return authkit.ErrNotFound
	}
	clone := *sess
	m.sessions[sess.ID] = &clone
	return nil
}

func (m *mockRepository) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return authkit.ErrNotFound
	}
	sess.LastActivity = at
	return nil
}

func (m *mockRepository) Extend(ctx context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return authkit.ErrNotFound
	}
	sess.ExpiresAt = until
	return nil
}

func (m *mockRepository) SetTokenHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return authkit.ErrNotFound
	}
	sess.TokenHash = hash
	return nil
}

func (m *mockRepository) SetCurrentRole(ctx context.Context, id, roleID string, restaurantID *string, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return authkit.ErrNotFound
	}
	sess.CurrentRoleID = roleID
	sess.RestaurantContextID = restaurantID
	sess.Permissions = permissions
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.deleted = append(m.deleted, id)
	select {
	case m.deletedCh <- id:
	default:
	}
	return nil
}

func (m *mockRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *mockRepository) DeleteOthersForUser(ctx context.Context, userID, exceptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.UserID == userID && id != exceptID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *mockRepository) DeleteForRole(ctx context.Context, roleID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, sess := range m.sessions {
		if sess.CurrentRoleID == roleID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func newTestStore(repo Repository, ttl time.Duration) *Store {
	return NewStore(repo, ttl, slog.Default())
}

func TestCreateSetsExpiryFromTTL(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, 2*time.Hour)
	fixed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	rid := "rest-1"
	sess, err := store.Create(context.Background(), CreateParams{
		UserID:              "u1",
		CurrentRoleID:       "r1",
		RestaurantContextID: &rid,
		Permissions:         []string{"menu:read"},
		IPAddress:           "10.0.0.1",
		UserAgent:           "test",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, fixed.Add(2*time.Hour), sess.ExpiresAt)
	assert.Equal(t, fixed, sess.LastActivity)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestCreateReplacesExistingSessions(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	first, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)
	second, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.count())
	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, authkit.ErrNotFound)
	_, err = store.Get(ctx, second.ID)
	assert.NoError(t, err)
}

func TestCreateKeepsOtherUsersSessions(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	a, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateParams{UserID: "u2", CurrentRoleID: "r2"})
	require.NoError(t, err)

	_, err = store.Get(ctx, a.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, repo.count())
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(newMockRepository(), time.Hour)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, authkit.ErrNotFound)
}

func TestGetExpiredSession(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, authkit.ErrSessionExpired)

	select {
	case id := <-repo.deletedCh:
		assert.Equal(t, sess.ID, id)
	case <-time.After(time.Second):
		t.Fatal("expired session was not deleted")
	}
}

func TestTouchAndExtend(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)

	later := time.Now().Add(30 * time.Minute)
	store.now = func() time.Time { return later }

	require.NoError(t, store.Touch(ctx, sess.ID))
	require.NoError(t, store.Extend(ctx, sess.ID))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later.UTC(), got.LastActivity, time.Second)
	assert.WithinDuration(t, later.UTC().Add(time.Hour), got.ExpiresAt, time.Second)
}

func TestSetCurrentRole(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)

	rid := "rest-9"
	require.NoError(t, store.SetCurrentRole(ctx, sess.ID, "r2", &rid, []string{"orders:read"}))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.CurrentRoleID)
	require.NotNil(t, got.RestaurantContextID)
	assert.Equal(t, rid, *got.RestaurantContextID)
	assert.Equal(t, []string{"orders:read"}, got.Permissions)
	assert.Equal(t, 1, repo.count())
}

func TestInvalidateVariants(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, authkit.ErrNotFound)

	sess, err = store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)
	require.NoError(t, store.InvalidateAllForUser(ctx, "u1"))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, authkit.ErrNotFound)
}

func TestInvalidateForRole(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)
	keep, err := store.Create(ctx, CreateParams{UserID: "u2", CurrentRoleID: "r2"})
	require.NoError(t, err)

	n, err := store.InvalidateForRole(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = store.Get(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestCleanupExpired(t *testing.T) {
	repo := newMockRepository()
	store := newTestStore(repo, time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateParams{UserID: "u2", CurrentRoleID: "r2"})
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, repo.count())

	n, err = store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateRepoFailure(t *testing.T) {
	repo := newMockRepository()
	repo.replaceError = errors.New("db down")
	store := newTestStore(repo, time.Hour)

	_, err := store.Create(context.Background(), CreateParams{UserID: "u1", CurrentRoleID: "r1"})
	require.Error(t, err)
}

func TestNewStoreDefaultsTTL(t *testing.T) {
	store := NewStore(newMockRepository(), 0, slog.Default())
	assert.Equal(t, DefaultTTL, store.TTL())
}
