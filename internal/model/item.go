package model

import "time"

// Item represents a planned budget line in the `items` table.  An
// item belongs to at most one project site; a NULL site means the
// record was created under the global scope.  Monetary fields are
// stored as DECIMAL and scanned into float64.
//
// Fields:
//
//	ID           – primary key identifier.
//	Name         – item description (required).
//	Category     – 'materials' or 'labour'.
//	Unit         – unit of measure (bags, trips, ...), optional.
//	Qty          – planned quantity.
//	UnitCost     – planned cost per unit.
//	Budget       – composed budget label (see internal/budget).
//	Section      – construction section the item belongs to.
//	Group        – derived group classification (items.grp).
//	BuildingType – Flats, Terraces, Semi-detached or Fully-detached.
//	Site         – owning project site name (nullable).
//	CreatedAt    – creation timestamp.
type Item struct {
	ID           uint64    // items.id
	Name         string    // items.name
	Category     string    // items.category
	Unit         string    // items.unit
	Qty          float64   // items.qty
	UnitCost     float64   // items.unit_cost
	Budget       string    // items.budget
	Section      string    // items.section
	Group        string    // items.grp
	BuildingType string    // items.building_type
	Site         *string   // items.project_site (nullable)
	CreatedAt    time.Time // items.created_at
}

// Amount returns the planned line amount.  It is derived, never stored.
func (i Item) Amount() float64 { return i.Qty * i.UnitCost }

// Item categories.
const (
	CategoryMaterials = "materials"
	CategoryLabour    = "labour"
)
