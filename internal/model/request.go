package model

import "time"

// Request statuses.  A request starts Pending and moves exactly once
// to Approved or Rejected; both are terminal.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// Request mirrors the `requests` table.  It references a planned
// item without owning it: deleting a request never touches the item.
//
// Fields:
//
//	ID           – primary key identifier.
//	ItemID       – referenced inventory item.
//	Qty          – requested quantity.
//	RequestedBy  – display name of the submitting identity.
//	Note         – free-form justification (required on submit).
//	Section      – 'materials' or 'labour' request section.
//	BuildingType – building type the request applies to.
//	Budget       – budget label carried from the submission form.
//	CurrentPrice – unit price at request time (falls back to the
//	               item's unit cost when not supplied).
//	Site         – owning project site name (nullable).
//	Status       – Pending, Approved or Rejected.
//	ApprovedBy   – display name of the deciding admin (nullable).
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last transition timestamp.
type Request struct {
	ID           uint64    // requests.id
	ItemID       uint64    // requests.item_id
	Qty          float64   // requests.qty
	RequestedBy  string    // requests.requested_by
	Note         string    // requests.note
	Section      string    // requests.section
	BuildingType string    // requests.building_type
	Budget       string    // requests.budget
	CurrentPrice float64   // requests.current_price
	Site         *string   // requests.project_site (nullable)
	Status       string    // requests.status
	ApprovedBy   *string   // requests.approved_by (nullable)
	CreatedAt    time.Time // requests.created_at
	UpdatedAt    time.Time // requests.updated_at
}

// Terminal reports whether the request has reached a final status.
func (r Request) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}
