package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
)

// RequestRepo provides persistence for the request lifecycle.  State
// transitions go through GetForUpdateTx + DecideTx inside one
// transaction so the Pending check and the terminal write are atomic
// under concurrent approvals.
type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo returns a new RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

// DB exposes the underlying handle for starting transactions.
func (r *RequestRepo) DB() *sql.DB { return r.db }

const requestColumns = `id, item_id, qty, requested_by, note, section, building_type, budget, current_price, project_site, status, approved_by, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*model.Request, error) {
	var req model.Request
	var site, approvedBy sql.NullString
	if err := row.Scan(&req.ID, &req.ItemID, &req.Qty, &req.RequestedBy, &req.Note,
		&req.Section, &req.BuildingType, &req.Budget, &req.CurrentPrice,
		&site, &req.Status, &approvedBy, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	if site.Valid {
		s := site.String
		req.Site = &s
	}
	if approvedBy.Valid {
		a := approvedBy.String
		req.ApprovedBy = &a
	}
	return &req, nil
}

// CreateTx persists a new pending request inside the supplied
// transaction, so the insert commits together with the notification
// it triggers.
func (r *RequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.Request) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO requests (item_id, qty, requested_by, note, section, building_type, budget, current_price, project_site, status)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ItemID, req.Qty, req.RequestedBy, req.Note, req.Section, req.BuildingType,
		req.Budget, req.CurrentPrice, nullable(req.Site), model.StatusPending)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

// GetByID fetches a request without tenant filtering; callers decide
// between 403 and 404 from the row's site.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (*model.Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	return scanRequest(row)
}

// GetForUpdateTx locks the request row for the duration of the
// transaction.  The lock is what makes the Pending-status check and
// the subsequent transition safe against a concurrent decision.
func (r *RequestRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Request, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ? FOR UPDATE`, id)
	return scanRequest(row)
}

// DecideTx records a terminal transition.  The WHERE clause insists on
// Pending so a raced duplicate decision updates zero rows and
// surfaces as ErrConflict even if the caller skipped the lock.
func (r *RequestRepo) DecideTx(ctx context.Context, tx *sql.Tx, id uint64, status, approvedBy string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = ?, approved_by = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, approvedBy, at, id, model.StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// List returns the requests visible under the scope, optionally
// restricted to one status and/or one submitter, newest first.
func (r *RequestRepo) List(ctx context.Context, scope auth.Scope, status, requestedBy string) ([]model.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM requests WHERE 1 = 1`
	args := []any{}
	cond, condArgs := scope.SiteCondition("project_site")
	q += cond
	args = append(args, condArgs...)
	if status != "" && status != "All" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	if requestedBy != "" {
		q += ` AND requested_by = ?`
		args = append(args, requestedBy)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// StatusCounts tallies requests per status within the scope for the
// review screen header.
func (r *RequestRepo) StatusCounts(ctx context.Context, scope auth.Scope, requestedBy string) (pending, approved, rejected int, err error) {
	q := `SELECT status, COUNT(*) FROM requests WHERE 1 = 1`
	args := []any{}
	cond, condArgs := scope.SiteCondition("project_site")
	q += cond
	args = append(args, condArgs...)
	if requestedBy != "" {
		q += ` AND requested_by = ?`
		args = append(args, requestedBy)
	}
	q += ` GROUP BY status`
	rows, qerr := r.db.QueryContext(ctx, q, args...)
	if qerr != nil {
		return 0, 0, 0, qerr
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, 0, err
		}
		switch status {
		case model.StatusPending:
			pending = n
		case model.StatusApproved:
			approved = n
		case model.StatusRejected:
			rejected = n
		}
	}
	return pending, approved, rejected, rows.Err()
}

// DeleteTx removes one request inside the transaction.  Associated
// notifications are removed by NotificationRepo.DeleteByRequestTx in
// the same transaction; the two always travel together.
func (r *RequestRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of requests, for the admin overview.
func (r *RequestRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n)
	return n, err
}
