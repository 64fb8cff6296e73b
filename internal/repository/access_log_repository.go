package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/istrom/site-inventory/internal/model"
)

// AccessLogRepo records every login attempt, successful or not.
type AccessLogRepo struct {
	db *sql.DB
}

// NewAccessLogRepo returns a new AccessLogRepo bound to the given database.
func NewAccessLogRepo(db *sql.DB) *AccessLogRepo { return &AccessLogRepo{db: db} }

// Insert appends one attempt.  Failures carry role "unknown" and the
// masked code prefix the caller already prepared; the raw code never
// reaches this layer.
func (r *AccessLogRepo) Insert(ctx context.Context, e *model.AccessLogEntry) error {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO access_logs (user_name, role, code_prefix, status, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		e.UserName, e.Role, e.CodePrefix, e.Status, e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// List returns attempts newer than the given cutoff, newest first,
// optionally filtered by role, with LIMIT/OFFSET pagination.
func (r *AccessLogRepo) List(ctx context.Context, since time.Time, role string, limit, offset int) ([]model.AccessLogEntry, error) {
	q := `SELECT id, user_name, role, code_prefix, status, created_at
          FROM access_logs WHERE created_at >= ?`
	args := []any{since}
	if role != "" {
		q += ` AND role = ?`
		args = append(args, role)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AccessLogEntry, 0)
	for rows.Next() {
		var e model.AccessLogEntry
		if err := rows.Scan(&e.ID, &e.UserName, &e.Role, &e.CodePrefix, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AccessStats aggregates the log for the audit view.
type AccessStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Today   int `json:"today"`
}

// Stats counts attempts since the cutoff, with Today measured from
// UTC midnight.
func (r *AccessLogRepo) Stats(ctx context.Context, since time.Time) (*AccessStats, error) {
	var s AccessStats
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COALESCE(SUM(status = ?), 0),
               COALESCE(SUM(status = ?), 0),
               COALESCE(SUM(created_at >= ?), 0)
        FROM access_logs WHERE created_at >= ?`,
		model.AccessSuccess, model.AccessFailed, midnight, since).
		Scan(&s.Total, &s.Success, &s.Failed, &s.Today)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Clear deletes the entire audit log and returns the number of rows
// removed.
func (r *AccessLogRepo) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_logs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
