package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/istrom/site-inventory/internal/model"
)

// SiteRepo manages project sites (tenants).  Deleting a site removes
// its access credential in the same transaction but deliberately
// leaves items, requests and actuals in place: historical ledger rows
// outlive the tenant that produced them and are surfaced through
// Orphans instead of being purged.
type SiteRepo struct {
	db *sql.DB
}

// NewSiteRepo returns a new SiteRepo bound to the given database.
func NewSiteRepo(db *sql.DB) *SiteRepo { return &SiteRepo{db: db} }

// DB exposes the underlying handle for starting transactions.
func (r *SiteRepo) DB() *sql.DB { return r.db }

func scanSite(row interface{ Scan(...any) error }) (*model.ProjectSite, error) {
	var s model.ProjectSite
	var desc sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &desc, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Description = desc.String
	return &s, nil
}

// List returns all project sites ordered by name.
func (r *SiteRepo) List(ctx context.Context) ([]model.ProjectSite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM project_sites ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ProjectSite, 0)
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetByID fetches one site.
func (r *SiteRepo) GetByID(ctx context.Context, id uint64) (*model.ProjectSite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM project_sites WHERE id = ?`, id)
	return scanSite(row)
}

// Create inserts a new site.  A duplicate name maps the MySQL unique
// violation onto ErrDuplicateName.
func (r *SiteRepo) Create(ctx context.Context, s *model.ProjectSite) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO project_sites (name, description) VALUES (?, ?)`, s.Name, s.Description)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateName
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// RenameTx updates a site's name and description and re-labels its
// credential and dependent records inside one transaction, so a
// rename never strands data under the old label.
func (r *SiteRepo) RenameTx(ctx context.Context, tx *sql.Tx, id uint64, oldName, newName, description string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE project_sites SET name = ?, description = ? WHERE id = ?`, newName, description, id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateName
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 && oldName != newName {
		return sql.ErrNoRows
	}
	if oldName == newName {
		return nil
	}
	for _, table := range []string{"access_codes", "items", "requests", "actuals", "building_type_configs"} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET project_site = ? WHERE project_site = ?`, newName, oldName); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTx removes a site and its access credential.  Dependent data
// rows keep their now-dangling site label on purpose.
func (r *SiteRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64, name string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM access_codes WHERE kind = ? AND project_site = ?`,
		model.CredentialSiteAdmin, name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM project_sites WHERE id = ?`, id)
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

// Count returns the number of sites, for the admin overview.
func (r *SiteRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_sites`).Scan(&n)
	return n, err
}

// Orphans returns site labels still referenced by items, requests or
// actuals but no longer present in project_sites.  These are the
// historical records left behind by site deletion.
func (r *SiteRepo) Orphans(ctx context.Context) ([]string, error) {
	const q = `
        SELECT DISTINCT s.project_site FROM (
            SELECT project_site FROM items
            UNION SELECT project_site FROM requests
            UNION SELECT project_site FROM actuals
        ) s
        WHERE s.project_site IS NOT NULL
          AND s.project_site NOT IN (SELECT name FROM project_sites)
        ORDER BY s.project_site`
	rows, err := r.db.QueryContext(ctx, q)
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
