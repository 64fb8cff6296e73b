package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/istrom/site-inventory/internal/auth"
)

func TestUpdateCostOutsideScopeIsForbidden(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewItemRepo(db)

	// the scope predicate is part of the UPDATE, so a foreign row
	// simply matches nothing
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE items SET qty = ?, unit_cost = ? WHERE id = ? AND project_site = ?`)).
		WithArgs(10.0, 250.0, uint64(9), "Alpha Court").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateCost(context.Background(), 9, 10, 250, auth.SiteScope("Alpha Court"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteUnderGlobalScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewItemRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), 9, auth.GlobalScope()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewItemRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM items WHERE id = \?`).
		WithArgs(uint64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), 404)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListScopedWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewItemRepo(db)

	cols := []string{"id", "name", "category", "unit", "qty", "unit_cost", "budget", "section", "grp", "building_type", "project_site", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(1, "Cement", "Materials", "bags", 100.0, 95.0, "Budget 1 - Flats(General Materials)", "materials", "Materials", "Flats", "Alpha Court", time.Now())

	mock.ExpectQuery(`SELECT .+ FROM items WHERE 1 = 1 AND project_site = \? AND section = \? AND building_type = \? ORDER BY`).
		WithArgs("Alpha Court", "materials", "Flats").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), auth.SiteScope("Alpha Court"), "materials", "Flats")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Cement" {
		t.Fatalf("unexpected items: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAllTxClearsRequestsInScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewItemRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM requests WHERE 1 = 1 AND project_site = ?`)).
		WithArgs("Alpha Court").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE 1 = 1 AND project_site = ?`)).
		WithArgs("Alpha Court").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	n, err := repo.DeleteAllTx(context.Background(), tx, auth.SiteScope("Alpha Court"), true)
	if err != nil {
		t.Fatalf("DeleteAllTx: %v", err)
	}
	if n != 12 {
		t.Fatalf("deleted = %d, want 12", n)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDistinctSectionsScoped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewItemRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT section FROM items WHERE section <> '' AND project_site = ?`)).
		WithArgs("Alpha Court").
		WillReturnRows(sqlmock.NewRows([]string{"section"}).AddRow("Foundations").AddRow("Roofing"))

	got, err := repo.DistinctSections(context.Background(), auth.SiteScope("Alpha Court"))
	if err != nil {
		t.Fatalf("DistinctSections: %v", err)
	}
	if len(got) != 2 || got[0] != "Foundations" || got[1] != "Roofing" {
		t.Fatalf("unexpected sections: %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
