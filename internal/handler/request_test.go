package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/middleware"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

func TestCanDelete(t *testing.T) {
	alpha := "Alpha Court"
	beta := "Beta Gardens"
	global := &auth.Identity{Role: auth.RoleGlobalAdmin, Name: auth.GlobalAdminName}
	siteAdmin := &auth.Identity{Role: auth.RoleSiteAdmin, Name: auth.SiteAdminName(alpha), Site: alpha}
	owner := &auth.Identity{Role: auth.RoleUser, Name: "J. Mason"}

	tests := []struct {
		name string
		id   *auth.Identity
		req  model.Request
		want bool
	}{
		{"global deletes anything", global, model.Request{Site: &beta, Status: model.StatusPending}, true},
		{"global deletes siteless rows", global, model.Request{Status: model.StatusApproved}, true},
		{"site admin deletes within site", siteAdmin, model.Request{Site: &alpha, Status: model.StatusPending}, true},
		{"site admin blocked outside site", siteAdmin, model.Request{Site: &beta, Status: model.StatusApproved}, false},
		{"site admin blocked on siteless rows", siteAdmin, model.Request{Status: model.StatusApproved}, false},
		{"owner deletes own terminal request", owner, model.Request{RequestedBy: "J. Mason", Status: model.StatusRejected}, true},
		{"owner blocked while pending", owner, model.Request{RequestedBy: "J. Mason", Status: model.StatusPending}, false},
		{"owner blocked on others' requests", owner, model.Request{RequestedBy: "K. Reed", Status: model.StatusApproved}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canDelete(tt.id, tt.id.Scope(), &tt.req); got != tt.want {
				t.Errorf("canDelete = %v, want %v", got, tt.want)
			}
		})
	}
}

func newRequestTestContext(t *testing.T, method, path, body string, id *auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.IdentityKey, id)
	return c, rec
}

func requestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "item_id", "qty", "requested_by", "note", "section", "building_type", "budget", "current_price", "project_site", "status", "approved_by", "created_at", "updated_at"})
}

func TestApproveAlreadyDecidedConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := NewRequestHandler(
		repository.NewItemRepo(db),
		repository.NewRequestRepo(db),
		repository.NewActualRepo(db),
		repository.NewNotificationRepo(db),
		repository.NewAccessCodeRepo(db),
	)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM requests WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(7)).
		WillReturnRows(requestRows().
			AddRow(7, 2, 5.0, "Admin - Alpha Court", "restock", "materials", "Flats", "Budget 1 - Flats(Woods)", 120.0, "Alpha Court", model.StatusApproved, "Global Administrator", now, now))
	mock.ExpectRollback()

	global := &auth.Identity{CredentialID: 1, Role: auth.RoleGlobalAdmin, Name: auth.GlobalAdminName}
	c, rec := newRequestTestContext(t, http.MethodPost, "/v1/requests/7/approve", "", global)
	c.SetParamNames("id")
	c.SetParamValues("7")

	if err := h.Approve(c); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "already Approved") {
		t.Fatalf("body should name the terminal status: %s", rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveOutsideScopeForbidden(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := NewRequestHandler(
		repository.NewItemRepo(db),
		repository.NewRequestRepo(db),
		repository.NewActualRepo(db),
		repository.NewNotificationRepo(db),
		repository.NewAccessCodeRepo(db),
	)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM requests WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(7)).
		WillReturnRows(requestRows().
			AddRow(7, 2, 5.0, "Admin - Beta Gardens", "restock", "materials", "Flats", "Budget 1 - Flats(Woods)", 120.0, "Beta Gardens", model.StatusPending, nil, now, now))
	mock.ExpectRollback()

	siteAdmin := &auth.Identity{CredentialID: 3, Role: auth.RoleSiteAdmin, Name: auth.SiteAdminName("Alpha Court"), Site: "Alpha Court"}
	c, rec := newRequestTestContext(t, http.MethodPost, "/v1/requests/7/approve", "", siteAdmin)
	c.SetParamNames("id")
	c.SetParamValues("7")

	if err := h.Approve(c); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	// a pending request in another tenant answers 403, never 404
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovePendingBooksActualOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := NewRequestHandler(
		repository.NewItemRepo(db),
		repository.NewRequestRepo(db),
		repository.NewActualRepo(db),
		repository.NewNotificationRepo(db),
		repository.NewAccessCodeRepo(db),
	)

	now := time.Now()
	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM requests WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(7)).
		WillReturnRows(requestRows().
			AddRow(7, 2, 5.0, "Admin - Alpha Court", "restock", "materials", "Flats", "Budget 1 - Flats(Woods)", 120.0, "Alpha Court", model.StatusPending, nil, created, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE requests SET status = ?, approved_by = ?, updated_at = ? WHERE id = ? AND status = ?`)).
		WithArgs(model.StatusApproved, auth.GlobalAdminName, sqlmock.AnyArg(), uint64(7), model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM items WHERE id = \?`).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "unit", "qty", "unit_cost", "budget", "section", "grp", "building_type", "project_site", "created_at"}).
			AddRow(2, "Cement", "Materials", "bags", 100.0, 95.0, "Budget 1 - Flats(Woods)", "materials", "Materials", "Flats", "Alpha Court", now))
	mock.ExpectExec(`INSERT INTO actuals .+ WHERE NOT EXISTS`).
		WithArgs(uint64(2), 5.0, 600.0, "2026-08-20", auth.GlobalAdminName, model.ProvenanceTag(7), "Alpha Court", model.ProvenanceTag(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT .+ FROM access_codes WHERE kind = \? AND project_site = \?`).
		WithArgs(model.CredentialSiteAdmin, "Alpha Court").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "project_site", "code_hash", "display_code", "updated_at"}).
			AddRow(3, model.CredentialSiteAdmin, "Alpha Court", "$2a$04$hash", "SITE****", now))
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(model.NotifyApproved, "Request approved", sqlmock.AnyArg(), uint64(3), uint64(7)).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	global := &auth.Identity{CredentialID: 1, Role: auth.RoleGlobalAdmin, Name: auth.GlobalAdminName}
	c, rec := newRequestTestContext(t, http.MethodPost, "/v1/requests/7/approve", "", global)
	c.SetParamNames("id")
	c.SetParamValues("7")

	if err := h.Approve(c); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), fmt.Sprintf("%q", model.StatusApproved)) {
		t.Fatalf("response should carry the terminal status: %s", rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
