package repository

import (
	"context"
	"database/sql"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
)

// ActualRepo persists realized cost rows.  The ledger is append-only:
// nothing in this service updates or deletes an actual once written.
type ActualRepo struct {
	db *sql.DB
}

// NewActualRepo returns a new ActualRepo bound to the given database.
func NewActualRepo(db *sql.DB) *ActualRepo { return &ActualRepo{db: db} }

// InsertFromApprovalTx appends the actual derived from an approved
// request, unless one carrying the same provenance tag already
// exists.  The existence check and the insert are a single
// conditional statement, so two transactions approving the same
// request cannot both book the cost.  Returns true when a row was
// written, false when the guard suppressed a duplicate.
func (r *ActualRepo) InsertFromApprovalTx(ctx context.Context, tx *sql.Tx, a *model.Actual) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO actuals (item_id, actual_qty, actual_cost, actual_date, recorded_by, notes, project_site)
         SELECT ?, ?, ?, ?, ?, ?, ?
         FROM DUAL
         WHERE NOT EXISTS (SELECT 1 FROM actuals WHERE notes = ?)`,
		a.ItemID, a.Qty, a.Cost, a.Date, a.RecordedBy, a.Notes, nullable(a.Site), a.Notes)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ItemTotals holds the summed realized quantity and cost for one item.
type ItemTotals struct {
	Qty  float64
	Cost float64
}

// SumsByItem aggregates actuals per item for the given item ids under
// the scope.  Items with no actuals are simply absent from the map;
// the reconciliation layer fills those in with zeros so planned rows
// are never omitted from variance reporting.
func (r *ActualRepo) SumsByItem(ctx context.Context, itemIDs []uint64, scope auth.Scope) (map[uint64]ItemTotals, error) {
	out := make(map[uint64]ItemTotals, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	q := `SELECT item_id, COALESCE(SUM(actual_qty), 0), COALESCE(SUM(actual_cost), 0) FROM actuals WHERE item_id IN (`
	args := make([]any, 0, len(itemIDs)+1)
	for i, id := range itemIDs {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, id)
	}
	q += `)`
	cond, condArgs := scope.SiteCondition("project_site")
	q += cond
	args = append(args, condArgs...)
	q += ` GROUP BY item_id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var t ItemTotals
		if err := rows.Scan(&id, &t.Qty, &t.Cost); err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, rows.Err()
}

// ListByScope returns every actual visible under the scope, newest
// first, for export.
func (r *ActualRepo) ListByScope(ctx context.Context, scope auth.Scope) ([]model.Actual, error) {
	q := `SELECT id, item_id, actual_qty, actual_cost, actual_date, recorded_by, notes, project_site, created_at
          FROM actuals WHERE 1 = 1`
	cond, args := scope.SiteCondition("project_site")
	q += cond + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Actual, 0)
	for rows.Next() {
		var a model.Actual
		var site sql.NullString
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Qty, &a.Cost, &a.Date, &a.RecordedBy, &a.Notes, &site, &a.CreatedAt); err != nil {
			return nil, err
		}
		if site.Valid {
			s := site.String
			a.Site = &s
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
