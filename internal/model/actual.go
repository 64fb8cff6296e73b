package model

import (
	"fmt"
	"time"
)

// Actual is an append-only realized cost row in the `actuals` table.
// Rows are produced exclusively by approving a request; the Notes
// column carries the provenance tag linking the row back to the
// request that produced it, which is what makes approval retry-safe.
//
// Fields:
//
//	ID         – primary key identifier.
//	ItemID     – referenced inventory item.
//	Qty        – realized quantity.
//	Cost       – realized total cost.
//	Date       – realization date (YYYY-MM-DD, as displayed).
//	RecordedBy – display name of the approving admin.
//	Notes      – provenance tag ("request:<id>").
//	Site       – owning project site name (nullable).
//	CreatedAt  – creation timestamp.
type Actual struct {
	ID         uint64    // actuals.id
	ItemID     uint64    // actuals.item_id
	Qty        float64   // actuals.actual_qty
	Cost       float64   // actuals.actual_cost
	Date       string    // actuals.actual_date
	RecordedBy string    // actuals.recorded_by
	Notes      string    // actuals.notes
	Site       *string   // actuals.project_site (nullable)
	CreatedAt  time.Time // actuals.created_at
}

// ProvenanceTag composes the opaque marker stored on an Actual to
// link it to the request that produced it.
func ProvenanceTag(requestID uint64) string {
	return fmt.Sprintf("request:%d", requestID)
}
