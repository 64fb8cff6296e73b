package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

func TestOwns(t *testing.T) {
	site := "Alpha Court"
	target := uint64(5)
	global := &auth.Identity{CredentialID: 1, Role: auth.RoleGlobalAdmin, Name: auth.GlobalAdminName}
	siteAdmin := &auth.Identity{CredentialID: 5, Role: auth.RoleSiteAdmin, Name: auth.SiteAdminName(site), Site: site}
	otherAdmin := &auth.Identity{CredentialID: 9, Role: auth.RoleSiteAdmin, Name: auth.SiteAdminName("Beta Gardens"), Site: "Beta Gardens"}

	tests := []struct {
		name string
		id   *auth.Identity
		n    *model.Notification
		want bool
	}{
		{"global owns broadcast", global, &model.Notification{}, true},
		{"global owns site-targeted", global, &model.Notification{TargetID: &target}, true},
		{"site admin owns own", siteAdmin, &model.Notification{TargetID: &target}, true},
		{"site admin denied others", otherAdmin, &model.Notification{TargetID: &target}, false},
		{"site admin denied broadcast", siteAdmin, &model.Notification{}, false},
	}
	for _, tt := range tests {
		if got := owns(tt.id, tt.n); got != tt.want {
			t.Errorf("%s: owns() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLedgerScopedToSite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := NewActualHandler(repository.NewItemRepo(db), repository.NewActualRepo(db))

	site := "Alpha Court"
	mock.ExpectQuery(`SELECT .+ FROM actuals WHERE 1 = 1 AND project_site = \? ORDER BY created_at DESC`).
		WithArgs(site).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "actual_qty", "actual_cost", "actual_date", "recorded_by", "notes", "project_site", "created_at"}).
			AddRow(3, 2, 5.0, 600.0, "2026-08-20", auth.GlobalAdminName, model.ProvenanceTag(7), site, time.Now()))

	admin := &auth.Identity{CredentialID: 5, Role: auth.RoleSiteAdmin, Name: auth.SiteAdminName(site), Site: site}
	c, rec := newRequestTestContext(t, http.MethodGet, "/v1/actuals/ledger", "", admin)

	if err := h.Ledger(c); err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), model.ProvenanceTag(7)) {
		t.Errorf("response missing provenance note: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
