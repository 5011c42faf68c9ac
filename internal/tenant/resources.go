package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// PGResourceResolver resolves owning restaurants from the business tables.
type PGResourceResolver struct {
	pool *pgxpool.Pool
}

// NewResourceResolver constructs a PGResourceResolver.
func NewResourceResolver(pool *pgxpool.Pool) *PGResourceResolver {
	return &PGResourceResolver{pool: pool}
}

// RestaurantForOrder returns the restaurant an order belongs to.
func (r *PGResourceResolver) RestaurantForOrder(ctx context.Context, orderID string) (string, error) {
	return r.lookup(ctx, `SELECT restaurant_id FROM orders WHERE id = $1`, orderID)
}

// RestaurantForTable returns the restaurant a table belongs to.
func (r *PGResourceResolver) RestaurantForTable(ctx context.Context, tableID string) (string, error) {
	return r.lookup(ctx, `SELECT restaurant_id FROM tables WHERE id = $1`, tableID)
}

// RestaurantForStaffRole returns the restaurant a staff assignment is scoped to.
func (r *PGResourceResolver) RestaurantForStaffRole(ctx context.Context, roleID string) (string, error) {
	return r.lookup(ctx, `SELECT restaurant_id FROM user_roles WHERE id = $1 AND restaurant_id IS NOT NULL`, roleID)
}

func (r *PGResourceResolver) lookup(ctx context.Context, query, id string) (string, error) {
	var restaurantID string
	if err := r.pool.QueryRow(ctx, query, id).Scan(&restaurantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authkit.ErrNotFound
		}
		return "", err
	}
	return restaurantID, nil
}

var _ ResourceResolver = (*PGResourceResolver)(nil)
