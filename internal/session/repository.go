package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/db"
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const sessionColumns = `session_id, user_id, current_role_id, restaurant_context_id,
	token_hash, permissions_snapshot, expires_at, last_activity, ip_address, user_agent, created_at`

// ReplaceForUser deletes the user's sessions and inserts the new one under a
// single transaction boundary, so concurrent logins settle on one live row.
func (r *PGRepository) ReplaceForUser(ctx context.Context, sess *Session) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, sess.UserID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO sessions (session_id, user_id, current_role_id, restaurant_context_id,
				token_hash, permissions_snapshot, expires_at, last_activity, ip_address, user_agent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			insertArgs(sess)...)
		return err
	})
}

// Get fetches a session row by id without applying expiry rules.
func (r *PGRepository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, id)
	return scanSession(row)
}

// Update persists the mutable fields of a session.
func (r *PGRepository) Update(ctx context.Context, sess *Session) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET current_role_id = $2, restaurant_context_id = $3, token_hash = $4,
			permissions_snapshot = $5, expires_at = $6, last_activity = $7
		WHERE session_id = $1`,
		sess.ID, sess.CurrentRoleID, sess.RestaurantContextID, sess.TokenHash,
		sess.Permissions, sess.ExpiresAt, sess.LastActivity)
	return err
}

// Touch advances last_activity.
func (r *PGRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_activity = $2 WHERE session_id = $1`, id, at)
	return err
}

// Extend pushes expires_at forward.
func (r *PGRepository) Extend(ctx context.Context, id string, until time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET expires_at = $2 WHERE session_id = $1`, id, until)
	return err
}

// SetTokenHash stores the hash of the currently issued token.
func (r *PGRepository) SetTokenHash(ctx context.Context, id, hash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET token_hash = $2 WHERE session_id = $1`, id, hash)
	return err
}

// SetCurrentRole repoints the session at another role in one statement.
func (r *PGRepository) SetCurrentRole(ctx context.Context, id, roleID string, restaurantID *string, permissions []string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET current_role_id = $2, restaurant_context_id = $3, permissions_snapshot = $4
		WHERE session_id = $1`, id, roleID, restaurantID, permissions)
	return err
}

// Delete removes one session.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, id)
	return err
}

// DeleteAllForUser removes every session a user holds.
func (r *PGRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// DeleteOthersForUser removes all of a user's sessions except one.
func (r *PGRepository) DeleteOthersForUser(ctx context.Context, userID, exceptID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND session_id <> $2`, userID, exceptID)
	return err
}

// DeleteForRole removes sessions bound to a role.
func (r *PGRepository) DeleteForRole(ctx context.Context, roleID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE current_role_id = $1`, roleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes rows whose expiry has passed.
func (r *PGRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess      Session
		tokenHash pgtype.Text
		ip        pgtype.Text
		ua        pgtype.Text
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.CurrentRoleID, &sess.RestaurantContextID,
		&tokenHash, &sess.Permissions, &sess.ExpiresAt, &sess.LastActivity, &ip, &ua, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrNotFound
		}
		return nil, err
	}
	sess.TokenHash = tokenHash.String
	sess.IPAddress = ip.String
	sess.UserAgent = ua.String
	return &sess, nil
}

// insertArgs lays out the positional INSERT arguments. token_hash travels as a
// plain string: the column is NOT NULL, and '' marks a session whose token has
// not been bound yet. Wrapping it in pgtype.Text would encode '' as SQL NULL
// and trip the constraint on every fresh session.
func insertArgs(sess *Session) []any {
	return []any{
		sess.ID, sess.UserID, sess.CurrentRoleID, sess.RestaurantContextID,
		sess.TokenHash, sess.Permissions,
		sess.ExpiresAt, sess.LastActivity,
		optionalText(sess.IPAddress), optionalText(sess.UserAgent), sess.CreatedAt,
	}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
