package auth

import "testing"

func strPtr(s string) *string { return &s }

func TestScopeAllows(t *testing.T) {
	alpha := strPtr("Alpha Court")
	beta := strPtr("Beta Gardens")

	tests := []struct {
		name   string
		scope  Scope
		record *string
		want   bool
	}{
		{"global unselected sees everything", GlobalScope(), alpha, true},
		{"global unselected sees siteless rows", GlobalScope(), nil, true},
		{"global with selection pins to it", Scope{global: true, site: "Alpha Court"}, alpha, true},
		{"global with selection hides other sites", Scope{global: true, site: "Alpha Court"}, beta, false},
		{"global with selection hides siteless rows", Scope{global: true, site: "Alpha Court"}, nil, false},
		{"site admin sees own site", SiteScope("Alpha Court"), alpha, true},
		{"site admin never sees another site", SiteScope("Alpha Court"), beta, false},
		{"site admin never sees siteless rows", SiteScope("Alpha Court"), nil, false},
		{"site admin without assignment sees nothing", SiteScope(""), alpha, false},
		{"site admin without assignment sees no siteless rows", SiteScope(""), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Allows(tt.record); got != tt.want {
				t.Errorf("Allows = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeSiteCondition(t *testing.T) {
	if cond, args := GlobalScope().SiteCondition("project_site"); cond != "" || len(args) != 0 {
		t.Errorf("unrestricted: cond=%q args=%v", cond, args)
	}

	cond, args := SiteScope("Alpha Court").SiteCondition("project_site")
	if cond != " AND project_site = ?" {
		t.Errorf("pinned cond = %q", cond)
	}
	if len(args) != 1 || args[0] != "Alpha Court" {
		t.Errorf("pinned args = %v", args)
	}

	// an unassigned site admin must match zero rows, never all
	cond, args = SiteScope("").SiteCondition("project_site")
	if cond != " AND 1 = 0" || len(args) != 0 {
		t.Errorf("fail-closed: cond=%q args=%v", cond, args)
	}
}

func TestScopeEffectiveSite(t *testing.T) {
	if s := GlobalScope().EffectiveSite(); s != nil {
		t.Errorf("global unselected EffectiveSite = %v, want nil", *s)
	}
	if s := SiteScope("Alpha Court").EffectiveSite(); s == nil || *s != "Alpha Court" {
		t.Errorf("site admin EffectiveSite = %v", s)
	}
	sel := Identity{Role: RoleGlobalAdmin, Site: "Beta Gardens"}.Scope()
	if s := sel.EffectiveSite(); s == nil || *s != "Beta Gardens" {
		t.Errorf("selected global EffectiveSite = %v", s)
	}
}

func TestIdentityScope(t *testing.T) {
	global := Identity{Role: RoleGlobalAdmin}
	if !global.Scope().Unrestricted() {
		t.Error("global admin without selection should be unrestricted")
	}
	site := Identity{Role: RoleSiteAdmin, Site: "Alpha Court"}
	if site.Scope().Unrestricted() {
		t.Error("site admin scope must never be unrestricted")
	}
	if !site.IsAdmin() || site.IsGlobalAdmin() {
		t.Error("site admin role flags wrong")
	}
}
