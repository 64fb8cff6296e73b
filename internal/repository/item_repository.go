package repository

import (
	"context"
	"database/sql"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
)

// ItemRepo provides CRUD operations for planned budget lines.  Every
// read is filtered through the caller's tenant scope at the SQL level;
// mutations additionally re-check ownership against the fetched row so
// a stale id can never cross sites.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// DB exposes the underlying handle for starting transactions that
// span multiple repositories.
func (r *ItemRepo) DB() *sql.DB { return r.db }

const itemColumns = `id, name, category, unit, qty, unit_cost, budget, section, grp, building_type, project_site, created_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	var it model.Item
	var site sql.NullString
	if err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Unit, &it.Qty, &it.UnitCost,
		&it.Budget, &it.Section, &it.Group, &it.BuildingType, &site, &it.CreatedAt); err != nil {
		return nil, err
	}
	if site.Valid {
		s := site.String
		it.Site = &s
	}
	return &it, nil
}

// Create inserts a new item and populates the generated ID.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO items (name, category, unit, qty, unit_cost, budget, section, grp, building_type, project_site)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.Name, it.Category, it.Unit, it.Qty, it.UnitCost, it.Budget, it.Section, it.Group, it.BuildingType, nullable(it.Site))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	return nil
}

// GetByID fetches a single item without tenant filtering.  Callers
// must check the row's site against their scope before acting on it;
// the lookup being unscoped is what lets handlers answer 403 rather
// than 404 for cross-tenant ids.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// List returns every item visible under the scope, newest first.
// Budget-label filtering is hierarchical and happens in the caller
// (see internal/budget); section and building type filters are plain
// equality and pushed down here.
func (r *ItemRepo) List(ctx context.Context, scope auth.Scope, section, buildingType string) ([]model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE 1 = 1`
	args := []any{}
	cond, condArgs := scope.SiteCondition("project_site")
	q += cond
	args = append(args, condArgs...)
	if section != "" && section != "All" {
		q += ` AND section = ?`
		args = append(args, section)
	}
	if buildingType != "" && buildingType != "All" {
		q += ` AND building_type = ?`
		args = append(args, buildingType)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// UpdateCost changes an item's quantity and unit cost.  The scope
// condition is part of the UPDATE itself so a concurrent site change
// cannot widen the write.
func (r *ItemRepo) UpdateCost(ctx context.Context, id uint64, qty, unitCost float64, scope auth.Scope) error {
	q := `UPDATE items SET qty = ?, unit_cost = ? WHERE id = ?`
	args := []any{qty, unitCost, id}
	cond, condArgs := scope.SiteCondition("project_site")
	q += cond
	args = append(args, condArgs...)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}

// Delete removes one item within the scope.  The caller is expected
// to have resolved existence/ownership already; a zero-row delete
// here still reports ErrForbidden rather than succeeding silently.
func (r *ItemRepo) Delete(ctx context.Context, id uint64, scope auth.Scope) error {
	q := `DELETE FROM items WHERE id = ?`
	args := []any{id}
	cond, condArgs := scope.SiteCondition("project_site")
	q += cond
	args = append(args, condArgs...)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}

// DeleteAllTx removes every item in scope, and optionally every
// request, inside the supplied transaction.  An unrestricted scope
// deletes across all tenants; callers gate that behind an explicit
// confirmation flag.
func (r *ItemRepo) DeleteAllTx(ctx context.Context, tx *sql.Tx, scope auth.Scope, alsoClearRequests bool) (int64, error) {
	cond, condArgs := scope.SiteCondition("project_site")
	if alsoClearRequests {
		if _, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE 1 = 1`+cond, condArgs...); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE 1 = 1`+cond, condArgs...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DistinctBudgets returns the budget labels already persisted within
// the scope, used to enrich the generated dropdown options.
func (r *ItemRepo) DistinctBudgets(ctx context.Context, scope auth.Scope) ([]string, error) {
	return r.distinctColumn(ctx, scope, "budget")
}

// DistinctSections returns the sections present within the scope.
func (r *ItemRepo) DistinctSections(ctx context.Context, scope auth.Scope) ([]string, error) {
	return r.distinctColumn(ctx, scope, "section")
}

func (r *ItemRepo) distinctColumn(ctx context.Context, scope auth.Scope, column string) ([]string, error) {
	q := `SELECT DISTINCT ` + column + ` FROM items WHERE ` + column + ` <> ''`
	cond, args := scope.SiteCondition("project_site")
	q += cond
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the total number of items, for the admin overview.
func (r *ItemRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// nullable converts an optional site label to its SQL representation.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
