package model

import "time"

// ProjectSite is a tenant: an isolated data partition identified by
// its unique name.  Items, requests, actuals and configurations
// reference the site by name label rather than by id, matching the
// persisted data this service inherits.
type ProjectSite struct {
	ID          uint64    // project_sites.id
	Name        string    // project_sites.name (unique)
	Description string    // project_sites.description
	CreatedAt   time.Time // project_sites.created_at
}

// BuildingConfig holds the per-site block layout for one building
// type, used by the budget summary to extrapolate per-block amounts.
type BuildingConfig struct {
	ID            uint64    // building_type_configs.id
	BuildingType  string    // building_type_configs.building_type
	Blocks        int       // building_type_configs.blocks
	UnitsPerBlock int       // building_type_configs.units_per_block
	Notes         string    // building_type_configs.notes
	Site          *string   // building_type_configs.project_site (nullable)
	CreatedAt     time.Time // building_type_configs.created_at
	UpdatedAt     time.Time // building_type_configs.updated_at
}

// DefaultBuildingConfig is returned when a site has no persisted
// configuration for a building type.  Explicit zero values, not a
// sentinel object.
var DefaultBuildingConfig = BuildingConfig{Blocks: 0, UnitsPerBlock: 0, Notes: ""}
