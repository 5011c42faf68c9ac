package restaurants

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// Repository defines the lookups the auth core performs against tenants.
type Repository interface {
	Get(ctx context.Context, id string) (*Restaurant, error)
	GetBySlug(ctx context.Context, slug string) (*Restaurant, error)
	// IsOwner confirms current ownership from persistence. Ownership can
	// change out-of-band, so it is never trusted from a token.
	IsOwner(ctx context.Context, restaurantID, userID string) (bool, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const restaurantColumns = `id, name, slug, owner_id, is_active, timezone, currency`

// Get fetches a restaurant by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*Restaurant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	return scanRestaurant(row)
}

// GetBySlug fetches a restaurant by its subdomain slug.
func (r *PGRepository) GetBySlug(ctx context.Context, slug string) (*Restaurant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE slug = $1`, slug)
	return scanRestaurant(row)
}

// IsOwner reports whether userID currently owns the restaurant.
func (r *PGRepository) IsOwner(ctx context.Context, restaurantID, userID string) (bool, error) {
	var owns bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1 AND owner_id = $2)`,
		restaurantID, userID).Scan(&owns)
	return owns, err
}

func scanRestaurant(row pgx.Row) (*Restaurant, error) {
	var rec Restaurant
	err := row.Scan(&rec.ID, &rec.Name, &rec.Slug, &rec.OwnerID, &rec.IsActive, &rec.Timezone, &rec.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

var _ Repository = (*PGRepository)(nil)
