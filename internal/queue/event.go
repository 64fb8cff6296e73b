// Package queue defines message payloads exchanged over the message broker.
package queue

// Request lifecycle event kinds.
const (
	EventRequestSubmitted = "request.submitted"
	EventRequestApproved  = "request.approved"
	EventRequestRejected  = "request.rejected"
)

// RequestEvent is published on every request lifecycle transition.
// It carries enough information for downstream consumers to log or
// trigger analytics without querying the primary database.
type RequestEvent struct {
	Event        string  `json:"event"`
	RequestID    uint64  `json:"request_id"`
	ItemID       uint64  `json:"item_id"`
	ItemName     string  `json:"item_name"`
	Qty          float64 `json:"qty"`
	Budget       string  `json:"budget"`
	Section      string  `json:"section"`
	BuildingType string  `json:"building_type"`
	Site         string  `json:"site"`
	Status       string  `json:"status"`
	ActedBy      string  `json:"acted_by"`
	OccurredAt   string  `json:"occurred_at"`
}
