package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/config"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

func newLoginContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func credentialRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "kind", "project_site", "code_hash", "display_code", "updated_at"})
}

func TestLoginSuccessWritesAuditRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	hash, err := auth.HashCode("GLOBAL-2026", 4)
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}

	h := NewAuthHandler(
		config.Config{JWTSecret: "login-test-secret", AccessTTLMin: 60},
		repository.NewAccessCodeRepo(db),
		repository.NewSiteRepo(db),
		repository.NewAccessLogRepo(db),
	)

	mock.ExpectQuery(`SELECT .+ FROM access_codes WHERE kind = \? LIMIT 1`).
		WithArgs(model.CredentialGlobalAdmin).
		WillReturnRows(credentialRows().AddRow(1, model.CredentialGlobalAdmin, nil, hash, "GLOB****", time.Now()))
	mock.ExpectExec(`INSERT INTO access_logs`).
		WithArgs(auth.GlobalAdminName, auth.RoleGlobalAdmin, "GLOB****", model.AccessSuccess, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := newLoginContext(t, `{"code":"GLOBAL-2026"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatalf("expected a token in the response: %s", rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginFailureAuditsWithoutLeaking(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	realHash, err := auth.HashCode("GLOBAL-2026", 4)
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}

	h := NewAuthHandler(
		config.Config{JWTSecret: "login-test-secret", AccessTTLMin: 60},
		repository.NewAccessCodeRepo(db),
		repository.NewSiteRepo(db),
		repository.NewAccessLogRepo(db),
	)

	mock.ExpectQuery(`SELECT .+ FROM access_codes WHERE kind = \? LIMIT 1`).
		WithArgs(model.CredentialGlobalAdmin).
		WillReturnRows(credentialRows().AddRow(1, model.CredentialGlobalAdmin, nil, realHash, "GLOB****", time.Now()))
	mock.ExpectQuery(`SELECT .+ FROM access_codes WHERE kind = \? ORDER BY project_site`).
		WithArgs(model.CredentialSiteAdmin).
		WillReturnRows(credentialRows())
	// the failed attempt is audited under "Unknown" with a masked prefix
	mock.ExpectExec(`INSERT INTO access_logs`).
		WithArgs("Unknown", "unknown", "WRON****", model.AccessFailed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := newLoginContext(t, `{"code":"WRONG-CODE"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "WRONG-CODE") {
		t.Fatal("response must not echo the presented code")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginRequiresCode(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := NewAuthHandler(
		config.Config{JWTSecret: "login-test-secret", AccessTTLMin: 60},
		repository.NewAccessCodeRepo(db),
		repository.NewSiteRepo(db),
		repository.NewAccessLogRepo(db),
	)

	c, rec := newLoginContext(t, `{"code":"  "}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
