package repository

import (
	"context"
	"database/sql"

	"github.com/istrom/site-inventory/internal/model"
)

// BuildingConfigRepo stores the per-site block layout for each
// building type, used by the budget summary to extrapolate per-block
// amounts across an estate.
type BuildingConfigRepo struct {
	db *sql.DB
}

// NewBuildingConfigRepo returns a new BuildingConfigRepo bound to the given database.
func NewBuildingConfigRepo(db *sql.DB) *BuildingConfigRepo { return &BuildingConfigRepo{db: db} }

const buildingConfigColumns = `id, building_type, blocks, units_per_block, notes, project_site, created_at, updated_at`

func scanBuildingConfig(row interface{ Scan(...any) error }) (*model.BuildingConfig, error) {
	var c model.BuildingConfig
	var notes, site sql.NullString
	if err := row.Scan(&c.ID, &c.BuildingType, &c.Blocks, &c.UnitsPerBlock, &notes, &site, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Notes = notes.String
	if site.Valid {
		c.Site = &site.String
	}
	return &c, nil
}

func siteCondition(site *string, args *[]any) string {
	if site == nil {
		return ` AND project_site IS NULL`
	}
	*args = append(*args, *site)
	return ` AND project_site = ?`
}

// Get returns the configuration for one building type on one site.
// A missing row yields model.DefaultBuildingConfig so summaries
// degrade to "no blocks configured" rather than an error.
func (r *BuildingConfigRepo) Get(ctx context.Context, site *string, buildingType string) (*model.BuildingConfig, error) {
	args := []any{buildingType}
	q := `SELECT ` + buildingConfigColumns + ` FROM building_type_configs WHERE building_type = ?` +
		siteCondition(site, &args)
	c, err := scanBuildingConfig(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		def := model.DefaultBuildingConfig
		def.BuildingType = buildingType
		def.Site = site
		return &def, nil
	}
	return c, err
}

// ListForSite returns all configured building types for one site.
func (r *BuildingConfigRepo) ListForSite(ctx context.Context, site *string) ([]model.BuildingConfig, error) {
	args := []any{}
	q := `SELECT ` + buildingConfigColumns + ` FROM building_type_configs WHERE 1 = 1` +
		siteCondition(site, &args) + ` ORDER BY building_type`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BuildingConfig, 0)
	for rows.Next() {
		c, err := scanBuildingConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Upsert creates or replaces the configuration for one building
// type.  The table carries no unique key across the nullable site
// column, so this is an update-then-insert rather than ON DUPLICATE
// KEY UPDATE.
func (r *BuildingConfigRepo) Upsert(ctx context.Context, c *model.BuildingConfig) error {
	args := []any{c.Blocks, c.UnitsPerBlock, c.Notes, c.BuildingType}
	q := `UPDATE building_type_configs SET blocks = ?, units_per_block = ?, notes = ? WHERE building_type = ?` +
		siteCondition(c.Site, &args)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO building_type_configs (building_type, blocks, units_per_block, notes, project_site)
        VALUES (?, ?, ?, ?, ?)`,
		c.BuildingType, c.Blocks, c.UnitsPerBlock, c.Notes, nullable(c.Site))
	return err
}
