package model

import "time"

// Notification kinds produced by the request workflow.
const (
	NotifyRequestCreated = "request"
	NotifyApproved       = "approval"
	NotifyRejected       = "rejection"
)

// Notification mirrors the `notifications` table.  A nil TargetID
// addresses all global administrators; a concrete TargetID addresses
// the credential with that id.  Notifications referencing a request
// are removed together with it.
type Notification struct {
	ID        uint64    // notifications.id
	Kind      string    // notifications.kind
	Title     string    // notifications.title
	Message   string    // notifications.message
	TargetID  *uint64   // notifications.target_id (nullable, nil = all global admins)
	RequestID *uint64   // notifications.request_id (nullable)
	IsRead    bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}
