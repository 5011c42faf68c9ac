package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadRepository is the query surface behind the trail, summary and
// statistics endpoints.
type ReadRepository interface {
	Trail(ctx context.Context, userID string, f TrailFilters) ([]Entry, error)
	RestaurantTrail(ctx context.Context, restaurantID string, f TrailFilters) ([]Entry, error)
	CountsByAction(ctx context.Context, userID string, since time.Time) (map[string]int64, error)
	CountsBySeverity(ctx context.Context, userID string, since time.Time) (map[string]int64, error)
	CountByActionGlobal(ctx context.Context, action string, since time.Time) (int64, error)
	Recent(ctx context.Context, userID string, limit int) ([]Entry, error)
	VolumeSince(ctx context.Context, since time.Time) (int64, error)
	TopActions(ctx context.Context, since time.Time, limit int) ([]ActionCount, error)
	TopUsers(ctx context.Context, since time.Time, limit int) ([]UserCount, error)
	DistinctActions(ctx context.Context) ([]string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements both sides of audit persistence on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one entry. The table has no UPDATE path.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource, severity, from_role, to_role,
			restaurant_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.UserID, entry.Action,
		optionalText(entry.Resource), entry.Severity,
		optionalText(entry.FromRole), optionalText(entry.ToRole),
		optionalText(entry.RestaurantID), meta,
		optionalText(entry.IPAddress), optionalText(entry.UserAgent), entry.CreatedAt)
	return err
}

const entryColumns = `id, user_id, action, COALESCE(resource, ''), severity,
	COALESCE(from_role, ''), COALESCE(to_role, ''), COALESCE(restaurant_id, ''),
	metadata, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at`

// Trail lists a user's entries, newest first.
func (r *PGRepository) Trail(ctx context.Context, userID string, f TrailFilters) ([]Entry, error) {
	limit, offset := pageWindow(f)
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM audit_logs
		WHERE user_id = $1
		  AND ($2 = '' OR action = $2)
		  AND ($3 = '' OR severity = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7`,
		userID, f.Action, f.Severity, nullableTime(f.From), nullableTime(f.To), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// RestaurantTrail lists entries scoped to one restaurant, newest first.
func (r *PGRepository) RestaurantTrail(ctx context.Context, restaurantID string, f TrailFilters) ([]Entry, error) {
	limit, offset := pageWindow(f)
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM audit_logs
		WHERE restaurant_id = $1
		  AND ($2 = '' OR action = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`,
		restaurantID, f.Action, nullableTime(f.From), nullableTime(f.To), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// CountsByAction aggregates a user's entries per action since a time.
func (r *PGRepository) CountsByAction(ctx context.Context, userID string, since time.Time) (map[string]int64, error) {
	return r.countGroups(ctx, `
		SELECT action, COUNT(*) FROM audit_logs
		WHERE user_id = $1 AND created_at >= $2 GROUP BY action`, userID, since)
}

// CountsBySeverity aggregates a user's entries per severity since a time.
func (r *PGRepository) CountsBySeverity(ctx context.Context, userID string, since time.Time) (map[string]int64, error) {
	return r.countGroups(ctx, `
		SELECT severity, COUNT(*) FROM audit_logs
		WHERE user_id = $1 AND created_at >= $2 GROUP BY severity`, userID, since)
}

// CountByActionGlobal counts one action across all users since a time.
func (r *PGRepository) CountByActionGlobal(ctx context.Context, action string, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND created_at >= $2`, action, since).Scan(&n)
	return n, err
}

// Recent returns a user's newest entries.
func (r *PGRepository) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM audit_logs
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// VolumeSince counts all entries written since a time.
func (r *PGRepository) VolumeSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}

// TopActions lists the most frequent actions since a time.
func (r *PGRepository) TopActions(ctx context.Context, since time.Time, limit int) ([]ActionCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT action, COUNT(*) AS n FROM audit_logs
		WHERE created_at >= $1 GROUP BY action ORDER BY n DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActionCount
	for rows.Next() {
		var ac ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

// TopUsers lists the most active users since a time.
func (r *PGRepository) TopUsers(ctx context.Context, since time.Time, limit int) ([]UserCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, COUNT(*) AS n FROM audit_logs
		WHERE created_at >= $1 GROUP BY user_id ORDER BY n DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserCount
	for rows.Next() {
		var uc UserCount
		if err := rows.Scan(&uc.UserID, &uc.Count); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// DistinctActions lists every action value present in the trail.
func (r *PGRepository) DistinctActions(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT action FROM audit_logs ORDER BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		out = append(out, action)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes entries past retention. The only delete path.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) countGroups(ctx context.Context, query string, args ...any) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &e.Severity,
			&e.FromRole, &e.ToRole, &e.RestaurantID, &meta, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func pageWindow(f TrailFilters) (limit, offset int) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

func nullableTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

var _ WriteRepository = (*PGRepository)(nil)
var _ ReadRepository = (*PGRepository)(nil)
