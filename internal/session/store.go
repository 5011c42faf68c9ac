package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

// Repository is the persistence surface the store drives.
type Repository interface {
	// ReplaceForUser deletes every session belonging to sess.UserID and
	// inserts sess, all inside one transaction.
	ReplaceForUser(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, sess *Session) error
	Touch(ctx context.Context, id string, at time.Time) error
	Extend(ctx context.Context, id string, until time.Time) error
	SetTokenHash(ctx context.Context, id, hash string) error
	SetCurrentRole(ctx context.Context, id, roleID string, restaurantID *string, permissions []string) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteOthersForUser(ctx context.Context, userID, exceptID string) error
	DeleteForRole(ctx context.Context, roleID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CreateParams describes a new login session.
type CreateParams struct {
	UserID              string
	CurrentRoleID       string
	RestaurantContextID *string
	Permissions         []string
	IPAddress           string
	UserAgent           string
}

// Store applies session lifecycle rules on top of a Repository. Expiry is
// enforced at read time, so correctness never depends on the background sweep.
type Store struct {
	repo   Repository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewStore constructs a Store. A non-positive ttl falls back to DefaultTTL.
func NewStore(repo Repository, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{repo: repo, ttl: ttl, logger: logger, now: time.Now}
}

// TTL exposes the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create mints a new session and removes every other session the user holds.
// One active session per user is the deliberate policy here; the delete and
// insert run under a single transaction so two concurrent logins cannot leave
// two live rows.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:                  uuid.NewString(),
		UserID:              params.UserID,
		CurrentRoleID:       params.CurrentRoleID,
		RestaurantContextID: params.RestaurantContextID,
		Permissions:         params.Permissions,
		ExpiresAt:           now.Add(s.ttl),
		LastActivity:        now,
		IPAddress:           params.IPAddress,
		UserAgent:           params.UserAgent,
		CreatedAt:           now,
	}
	if err := s.repo.ReplaceForUser(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// Get returns the live session with the given id. An absent row yields
// ErrNotFound; an expired row yields ErrSessionExpired and is deleted in the
// background so readers never have to wait on the cleanup.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, authkit.ErrNotFound) {
			return nil, authkit.ErrNotFound
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}
	if sess.Expired(s.now()) {
		s.deleteAsync(sess.ID)
		return nil, authkit.ErrSessionExpired
	}
	return sess, nil
}

// Touch advances lastActivity for a session.
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.repo.Touch(ctx, id, s.now().UTC())
}

// Extend pushes the expiry out by the configured TTL from now.
func (s *Store) Extend(ctx context.Context, id string) error {
	return s.repo.Extend(ctx, id, s.now().UTC().Add(s.ttl))
}

// Update persists mutable session fields.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	return s.repo.Update(ctx, sess)
}

// SetTokenHash binds the hash of an issued token to the session.
func (s *Store) SetTokenHash(ctx context.Context, id, hash string) error {
	return s.repo.SetTokenHash(ctx, id, hash)
}

// SetCurrentRole atomically repoints the session at a different role. Used by
// role switching; never creates a second session.
func (s *Store) SetCurrentRole(ctx context.Context, id, roleID string, restaurantID *string, permissions []string) error {
	return s.repo.SetCurrentRole(ctx, id, roleID, restaurantID, permissions)
}

// Invalidate deletes one session.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// InvalidateAllForUser deletes every session a user holds.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID string) error {
	return s.repo.DeleteAllForUser(ctx, userID)
}

// InvalidateOthers deletes all of a user's sessions except one.
func (s *Store) InvalidateOthers(ctx context.Context, userID, exceptID string) error {
	return s.repo.DeleteOthersForUser(ctx, userID, exceptID)
}

// InvalidateForRole deletes sessions currently bound to a role. Used when a
// role is removed so affected clients must re-authenticate.
func (s *Store) InvalidateForRole(ctx context.Context, roleID string) (int64, error) {
	return s.repo.DeleteForRole(ctx, roleID)
}

// CleanupExpired removes expired rows. Idempotent; safe on any cadence or
// never, since Get already refuses expired sessions.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}

func (s *Store) deleteAsync(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.Delete(ctx, id); err != nil && s.logger != nil {
			s.logger.Warn("delete expired session", slog.String("session_id", id), slog.Any("error", err))
		}
	}()
}
