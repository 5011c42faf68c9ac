package permissions

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ActiveGrantsForUser loads active roles whose restaurant, if scoped, is active.
func (r *PGRepository) ActiveGrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.id, ur.role_template, ur.restaurant_id, ur.custom_permissions
		FROM user_roles ur
		LEFT JOIN restaurants r ON r.id = ur.restaurant_id
		WHERE ur.user_id = $1
		  AND ur.is_active
		  AND (ur.restaurant_id IS NULL OR r.is_active)
		ORDER BY ur.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.Template, &g.RestaurantID, &g.CustomPermissions); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// TemplatePermissions returns active permission keys mapped to a template.
func (r *PGRepository) TemplatePermissions(ctx context.Context, template string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rtp.permission_key
		FROM role_template_permissions rtp
		JOIN permissions p ON p.key = rtp.permission_key
		WHERE rtp.role_template = $1 AND p.is_active
		ORDER BY rtp.permission_key`, template)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
