// Package auth defines the resolved identity of a caller and the
// tenant scope derived from it.  An Identity is immutable for the
// lifetime of its session token; the only mutable piece of scoping is
// the global administrator's selected site, which changes solely by
// reissuing the token through the site-switch endpoint.
package auth

// Roles carried in the session token.  Only the two admin roles are
// ever issued by the resolver; RoleUser exists for request ownership
// rules on records submitted by non-admin identities.
const (
	RoleGlobalAdmin = "global_admin"
	RoleSiteAdmin   = "site_admin"
	RoleUser        = "user"
)

// GlobalAdminName is the display name recorded for the global
// administrator on requests, approvals and audit rows.
const GlobalAdminName = "Global Administrator"

// Identity is the resolved caller: who they are and which tenant
// binds them.  For a site admin, Site is the assigned project site
// fixed at login.  For the global admin, Site is the currently
// selected site ("" meaning all sites).
type Identity struct {
	CredentialID uint64
	Role         string
	Name         string
	Site         string
	SessionID    string
}

// IsGlobalAdmin reports whether the identity holds the global role.
func (id Identity) IsGlobalAdmin() bool { return id.Role == RoleGlobalAdmin }

// IsAdmin reports whether the identity may act on requests.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleGlobalAdmin || id.Role == RoleSiteAdmin
}

// Scope derives the tenant scope for data access.
func (id Identity) Scope() Scope {
	return Scope{global: id.IsGlobalAdmin(), site: id.Site}
}

// SiteAdminName composes the display name used for a site credential.
func SiteAdminName(site string) string { return "Admin - " + site }

// Scope encapsulates which project site's data is visible and
// writable.  It is consulted on every read and write; a site admin
// scope can never widen past its assigned site.
type Scope struct {
	global bool
	site   string
}

// GlobalScope returns the unrestricted scope (global admin, no
// selection).  Used by bootstrap paths and tests.
func GlobalScope() Scope { return Scope{global: true} }

// SiteScope returns a scope pinned to one site, as held by a site admin.
func SiteScope(site string) Scope { return Scope{site: site} }

// EffectiveSite returns the site new records are stamped with: the
// assigned site for a site admin, the selected site for the global
// admin, or nil when the global admin has no selection.
func (s Scope) EffectiveSite() *string {
	if s.global && s.site == "" {
		return nil
	}
	site := s.site
	return &site
}

// Unrestricted reports whether the scope sees every tenant.
func (s Scope) Unrestricted() bool { return s.global && s.site == "" }

// Allows reports whether a record with the given site label is
// visible/writable under this scope.  A site admin with no assigned
// site matches nothing: fail closed, never open.
func (s Scope) Allows(recordSite *string) bool {
	if s.global {
		if s.site == "" {
			return true
		}
		return recordSite != nil && *recordSite == s.site
	}
	if s.site == "" {
		return false
	}
	return recordSite != nil && *recordSite == s.site
}

// SiteCondition renders the scope as a SQL predicate on the given
// column.  The returned clause starts with " AND" (or is empty for an
// unrestricted scope) so callers can append it to a WHERE clause.
// The fail-closed branch compiles to a predicate matching no rows.
func (s Scope) SiteCondition(column string) (string, []any) {
	if s.global {
		if s.site == "" {
			return "", nil
		}
		return " AND " + column + " = ?", []any{s.site}
	}
	if s.site == "" {
		return " AND 1 = 0", nil
	}
	return " AND " + column + " = ?", []any{s.site}
}
