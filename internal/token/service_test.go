package token

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	"github.com/atiff-automation/QR-Eat-sub000/internal/session"
	"github.com/atiff-automation/QR-Eat-sub000/internal/users"
)

const testSecret = "test-secret-test-secret-test-secret"

type mockSessionStore struct {
	sessions map[string]*session.Session
	ttl      time.Duration
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*session.Session), ttl: time.Hour}
}

func (m *mockSessionStore) Create(ctx context.Context, params session.CreateParams) (*session.Session, error) {
	for id, sess := range m.sessions {
		if sess.UserID == params.UserID {
			delete(m.sessions, id)
		}
	}
	now := time.Now().UTC()
	sess := &session.Session{
		ID:                  uuid.NewString(),
		UserID:              params.UserID,
		CurrentRoleID:       params.CurrentRoleID,
		RestaurantContextID: params.RestaurantContextID,
		Permissions:         params.Permissions,
		ExpiresAt:           now.Add(m.ttl),
		LastActivity:        now,
		CreatedAt:           now,
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *mockSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, authkit.ErrNotFound
	}
	if sess.Expired(time.Now()) {
		return nil, authkit.ErrSessionExpired
	}
	return sess, nil
}

func (m *mockSessionStore) SetTokenHash(ctx context.Context, id, hash string) error {
	sess, ok := m.sessions[id]
	if !ok {
		return authkit.ErrNotFound
	}
	sess.TokenHash = hash
	return nil
}

func (m *mockSessionStore) Touch(ctx context.Context, id string) error {
	sess, ok := m.sessions[id]
	if !ok {
		return authkit.ErrNotFound
	}
	sess.LastActivity = time.Now().UTC()
	return nil
}

func (m *mockSessionStore) Invalidate(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func testUser() *users.User {
	return &users.User{ID: "u1", Email: "staff@example.com", FirstName: "Aina", LastName: "Rahim", IsActive: true}
}

func testRole() roles.UserRole {
	rid := "rest-1"
	return roles.UserRole{
		ID: "r1", UserID: "u1", UserType: roles.UserTypeStaff,
		RoleTemplate: "waiter", RestaurantID: &rid, IsActive: true,
	}
}

func issueToken(t *testing.T, svc *Service, store *mockSessionStore) (string, *session.Session) {
	t.Helper()
	sess, err := store.Create(context.Background(), session.CreateParams{
		UserID: "u1", CurrentRoleID: "r1", Permissions: []string{"menu:read"},
	})
	require.NoError(t, err)
	signed, err := svc.Generate(context.Background(), GenerateParams{
		User:           testUser(),
		Session:        sess,
		CurrentRole:    testRole(),
		AvailableRoles: []roles.UserRole{testRole()},
		Permissions:    []string{"menu:read"},
	})
	require.NoError(t, err)
	return signed, sess
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, sess := issueToken(t, svc, store)
	assert.Equal(t, HashToken(signed), store.sessions[sess.ID].TokenHash)

	claims, err := svc.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "staff@example.com", claims.Email)
	assert.Equal(t, sess.ID, claims.SessionID)
	assert.Equal(t, "r1", claims.CurrentRole.ID)
	assert.Equal(t, []string{"menu:read"}, claims.Permissions)
	require.Len(t, claims.AvailableRoles, 1)
}

func TestVerifyTamperedToken(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, _ := issueToken(t, svc, store)
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err := svc.Verify(context.Background(), tampered)
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	store := newMockSessionStore()
	signer := NewService(testSecret, "qr-eat", store, slog.Default())
	verifier := NewService("another-secret-entirely-different", "qr-eat", store, slog.Default())

	signed, _ := issueToken(t, signer, store)
	_, err := verifier.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestVerifyWrongIssuer(t *testing.T) {
	store := newMockSessionStore()
	signer := NewService(testSecret, "someone-else", store, slog.Default())
	verifier := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, _ := issueToken(t, signer, store)
	_, err := verifier.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	svc := NewService(testSecret, "qr-eat", newMockSessionStore(), slog.Default())
	_, err := svc.Verify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestVerifySessionGone(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, sess := issueToken(t, svc, store)
	require.NoError(t, store.Invalidate(context.Background(), sess.ID))

	_, err := svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestVerifySessionExpired(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, sess := issueToken(t, svc, store)
	store.sessions[sess.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err := svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrSessionExpired)
}

type mockExpiryRecorder struct {
	userID    string
	sessionID string
	calls     int
}

func (m *mockExpiryRecorder) LogSessionExpired(ctx context.Context, userID, sessionID string) {
	m.userID = userID
	m.sessionID = sessionID
	m.calls++
}

func TestVerifyExpiredSessionAudited(t *testing.T) {
	store := newMockSessionStore()
	rec := &mockExpiryRecorder{}
	svc := NewService(testSecret, "qr-eat", store, slog.Default()).WithAudit(rec)

	signed, sess := issueToken(t, svc, store)
	store.sessions[sess.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err := svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrSessionExpired)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "u1", rec.userID)
	assert.Equal(t, sess.ID, rec.sessionID)
}

func TestVerifyExpiredTokenAudited(t *testing.T) {
	rec := &mockExpiryRecorder{}
	svc := NewService(testSecret, "qr-eat", newMockSessionStore(), slog.Default()).WithAudit(rec)

	claims := Claims{
		UserID: "u1", Email: "a@b.c", SessionID: "s1",
		CurrentRole: RoleClaim{ID: "r1", UserType: "staff", RoleTemplate: "waiter"},
		Permissions: []string{},
	}
	claims.Subject = "u1"
	claims.Issuer = "qr-eat"
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrSessionExpired)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "s1", rec.sessionID)
}

func TestVerifyHashMismatch(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, sess := issueToken(t, svc, store)
	store.sessions[sess.ID].TokenHash = HashToken("a different token")

	_, err := svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestVerifyAdvancesLastActivity(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	signed, sess := issueToken(t, svc, store)
	store.sessions[sess.ID].LastActivity = time.Now().Add(-time.Hour)

	_, err := svc.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), store.sessions[sess.ID].LastActivity, time.Second)
}

func TestRefreshRotatesSessionAndToken(t *testing.T) {
	store := newMockSessionStore()
	svc := NewService(testSecret, "qr-eat", store, slog.Default())

	old, oldSess := issueToken(t, svc, store)
	fresh, claims, err := svc.Refresh(context.Background(), old)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)
	assert.NotEqual(t, oldSess.ID, claims.SessionID)

	// The replaced session is gone; only the new token verifies.
	_, err = svc.Verify(context.Background(), old)
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
	got, err := svc.Verify(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, claims.SessionID, got.SessionID)
	assert.Equal(t, "u1", got.UserID)
}

func TestRefreshRejectsInvalidToken(t *testing.T) {
	svc := NewService(testSecret, "qr-eat", newMockSessionStore(), slog.Default())
	_, _, err := svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, authkit.ErrInvalidToken)
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestClaimsValidateShape(t *testing.T) {
	base := func() *Claims {
		c := &Claims{
			UserID: "u1", Email: "a@b.c", SessionID: "s1",
			CurrentRole: RoleClaim{ID: "r1", UserType: "staff", RoleTemplate: "waiter"},
			Permissions: []string{},
		}
		c.Subject = "u1"
		c.Issuer = "qr-eat"
		now := time.Now()
		c.IssuedAt = jwt.NewNumericDate(now)
		c.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour))
		return c
	}

	require.NoError(t, base().ValidateShape("qr-eat"))

	mutations := map[string]func(*Claims){
		"missing user":        func(c *Claims) { c.UserID = "" },
		"missing email":       func(c *Claims) { c.Email = "" },
		"missing session":     func(c *Claims) { c.SessionID = "" },
		"missing role":        func(c *Claims) { c.CurrentRole.ID = "" },
		"nil permissions":     func(c *Claims) { c.Permissions = nil },
		"subject mismatch":    func(c *Claims) { c.Subject = "someone-else" },
		"wrong issuer":        func(c *Claims) { c.Issuer = "not-us" },
		"no expiry":           func(c *Claims) { c.ExpiresAt = nil },
		"bad available role":  func(c *Claims) { c.AvailableRoles = []RoleClaim{{ID: "r2"}} },
		"empty restaurant id": func(c *Claims) { c.RestaurantContext = &RestaurantClaim{} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.ErrorIs(t, c.ValidateShape("qr-eat"), authkit.ErrInvalidToken)
		})
	}
}
