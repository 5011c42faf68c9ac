package roles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// Repository defines persistence operations for user roles.
type Repository interface {
	Create(ctx context.Context, role *UserRole) error
	Get(ctx context.Context, id string) (*UserRole, error)
	ListActiveForUser(ctx context.Context, userID string) ([]UserRole, error)
	CountActiveForUser(ctx context.Context, userID string) (int, error)
	HasActiveForRestaurant(ctx context.Context, userID string, restaurantID *string) (bool, error)
	Deactivate(ctx context.Context, id string, at time.Time) error
	SetCustomPermissions(ctx context.Context, id string, perms []string, at time.Time) error
}

// PGRepository implements Repository on PostgreSQL. A partial unique index on
// (user_id, restaurant_id) WHERE is_active backs the duplicate-role rule.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, user_id, user_type, role_template, restaurant_id,
	custom_permissions, is_active, created_at, updated_at`

// Create inserts a user role. A unique-index conflict surfaces as
// ErrRoleAlreadyExists.
func (r *PGRepository) Create(ctx context.Context, role *UserRole) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (id, user_id, user_type, role_template, restaurant_id,
			custom_permissions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		role.ID, role.UserID, string(role.UserType), role.RoleTemplate, role.RestaurantID,
		role.CustomPermissions, role.IsActive, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if duplicateActiveRole(err) {
			return authkit.ErrRoleAlreadyExists
		}
		return err
	}
	return nil
}

// duplicateActiveRole matches the unique-index violation raised when a second
// active role lands on the same (user, restaurant) slot. pgx wraps the server
// error, so errors.As is required rather than a direct type assertion.
func duplicateActiveRole(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_user_roles_active_tenant"
}

// Get fetches a role by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*UserRole, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM user_roles WHERE id = $1`, id)
	return scanRole(row)
}

// ListActiveForUser returns the user's active roles ordered by creation.
func (r *PGRepository) ListActiveForUser(ctx context.Context, userID string) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM user_roles WHERE user_id = $1 AND is_active ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []UserRole
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// CountActiveForUser counts the user's active roles.
func (r *PGRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	return n, err
}

// HasActiveForRestaurant reports whether the user already holds an active role
// for the given restaurant scope (nil matching the unscoped admin slot).
func (r *PGRepository) HasActiveForRestaurant(ctx context.Context, userID string, restaurantID *string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_roles
			WHERE user_id = $1 AND is_active
			  AND restaurant_id IS NOT DISTINCT FROM $2
		)`, userID, restaurantID).Scan(&exists)
	return exists, err
}

// Deactivate soft-deletes a role.
func (r *PGRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_roles SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrNotFound
	}
	return nil
}

// SetCustomPermissions replaces a role's per-assignment grants.
func (r *PGRepository) SetCustomPermissions(ctx context.Context, id string, perms []string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_roles SET custom_permissions = $2, updated_at = $3 WHERE id = $1`, id, perms, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (*UserRole, error) {
	var (
		role     UserRole
		userType string
	)
	err := row.Scan(&role.ID, &role.UserID, &userType, &role.RoleTemplate, &role.RestaurantID,
		&role.CustomPermissions, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrNotFound
		}
		return nil, err
	}
	role.UserType = UserType(userType)
	return &role, nil
}

var _ Repository = (*PGRepository)(nil)
