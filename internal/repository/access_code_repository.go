package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/istrom/site-inventory/internal/model"
)

// AccessCodeRepo stores login credentials.  There is at most one
// global-admin credential and at most one credential per site; both
// are replaced in place on rotation.
type AccessCodeRepo struct {
	db *sql.DB
}

// NewAccessCodeRepo returns a new AccessCodeRepo bound to the given database.
func NewAccessCodeRepo(db *sql.DB) *AccessCodeRepo { return &AccessCodeRepo{db: db} }

const accessCodeColumns = `id, kind, project_site, code_hash, display_code, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (*model.AccessCredential, error) {
	var c model.AccessCredential
	var site sql.NullString
	if err := row.Scan(&c.ID, &c.Kind, &site, &c.CodeHash, &c.DisplayCode, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if site.Valid {
		c.Site = &site.String
	}
	return &c, nil
}

// GetGlobal returns the global-admin credential.
func (r *AccessCodeRepo) GetGlobal(ctx context.Context) (*model.AccessCredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accessCodeColumns+` FROM access_codes WHERE kind = ? LIMIT 1`,
		model.CredentialGlobalAdmin)
	return scanCredential(row)
}

// GetBySite returns the credential for one site.
func (r *AccessCodeRepo) GetBySite(ctx context.Context, site string) (*model.AccessCredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accessCodeColumns+` FROM access_codes WHERE kind = ? AND project_site = ?`,
		model.CredentialSiteAdmin, site)
	return scanCredential(row)
}

// ListSiteCredentials returns every site credential, ordered by site
// name.  Login iterates these when the submitted code is not the
// global one.
func (r *AccessCodeRepo) ListSiteCredentials(ctx context.Context) ([]model.AccessCredential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accessCodeColumns+` FROM access_codes WHERE kind = ? ORDER BY project_site`,
		model.CredentialSiteAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AccessCredential, 0)
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpsertGlobal replaces the global-admin code.  The table has no
// unique key across the nullable site column, so rotation is an
// update-then-insert rather than ON DUPLICATE KEY UPDATE.
func (r *AccessCodeRepo) UpsertGlobal(ctx context.Context, codeHash, displayCode string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE access_codes SET code_hash = ?, display_code = ?, updated_at = ?
        WHERE kind = ? AND project_site IS NULL`,
		codeHash, displayCode, time.Now().UTC(), model.CredentialGlobalAdmin)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO access_codes (kind, project_site, code_hash, display_code)
        VALUES (?, NULL, ?, ?)`,
		model.CredentialGlobalAdmin, codeHash, displayCode)
	return err
}

// UpsertSite creates or rotates the credential for one site.
func (r *AccessCodeRepo) UpsertSite(ctx context.Context, site, codeHash, displayCode string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE access_codes SET code_hash = ?, display_code = ?, updated_at = ?
        WHERE kind = ? AND project_site = ?`,
		codeHash, displayCode, time.Now().UTC(), model.CredentialSiteAdmin, site)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO access_codes (kind, project_site, code_hash, display_code)
        VALUES (?, ?, ?, ?)`,
		model.CredentialSiteAdmin, site, codeHash, displayCode)
	return err
}

// Count returns the total number of credentials, for the admin overview.
func (r *AccessCodeRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_codes`).Scan(&n)
	return n, err
}
