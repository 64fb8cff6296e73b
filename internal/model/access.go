package model

import "time"

// Access credential kinds.  Exactly one global_admin credential and
// at most one site_admin credential per site exist at a time; the
// invariant is maintained by upsert-by-kind-and-site.
const (
	CredentialGlobalAdmin = "global_admin"
	CredentialSiteAdmin   = "site_admin"
)

// AccessCredential mirrors the `access_codes` table.  DisplayCode
// keeps the plaintext for display inside the admin settings screen
// only; authentication always goes through the bcrypt hash.
type AccessCredential struct {
	ID          uint64    // access_codes.id
	Kind        string    // access_codes.kind
	Site        *string   // access_codes.project_site (nullable, nil for global_admin)
	CodeHash    string    // access_codes.code_hash (bcrypt)
	DisplayCode string    // access_codes.display_code
	CreatedAt   time.Time // access_codes.created_at
	UpdatedAt   time.Time // access_codes.updated_at
}

// Access log statuses.
const (
	AccessSuccess = "Success"
	AccessFailed  = "Failed"
)

// AccessLogEntry is one append-only row of the authentication audit
// trail.  CodePrefix never contains the full secret: only the first
// four characters followed by a fixed mask.
type AccessLogEntry struct {
	ID         uint64    // access_logs.id
	UserName   string    // access_logs.user_name
	Role       string    // access_logs.role
	CodePrefix string    // access_logs.code_prefix
	Status     string    // access_logs.status
	CreatedAt  time.Time // access_logs.created_at
}
