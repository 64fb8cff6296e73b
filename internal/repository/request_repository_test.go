package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
)

func TestDecideTxRejectsNonPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewRequestRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE requests SET status = ?, approved_by = ?, updated_at = ? WHERE id = ? AND status = ?`)).
		WithArgs(model.StatusApproved, "Global Administrator", now, uint64(7), model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	err = repo.DecideTx(context.Background(), tx, 7, model.StatusApproved, "Global Administrator", now)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	_ = tx.Rollback()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDecideTxTransitionsPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewRequestRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE requests SET status = ?, approved_by = ?, updated_at = ? WHERE id = ? AND status = ?`)).
		WithArgs(model.StatusRejected, "Admin - Alpha Court", now, uint64(3), model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := repo.DecideTx(context.Background(), tx, 3, model.StatusRejected, "Admin - Alpha Court", now); err != nil {
		t.Fatalf("DecideTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAppliesSiteScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewRequestRepo(db)

	cols := []string{"id", "item_id", "qty", "requested_by", "note", "section", "building_type", "budget", "current_price", "project_site", "status", "approved_by", "created_at", "updated_at"}
	now := time.Now()
	rows := sqlmock.NewRows(cols).
		AddRow(1, 2, 5.0, "Admin - Alpha Court", "restock", "materials", "Flats", "Budget 1 - Flats(Woods)", 120.0, "Alpha Court", model.StatusPending, nil, now, now)

	mock.ExpectQuery(`SELECT .+ FROM requests WHERE 1 = 1 AND project_site = \? ORDER BY created_at DESC, id DESC`).
		WithArgs("Alpha Court").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), auth.SiteScope("Alpha Court"), "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Site == nil || *got[0].Site != "Alpha Court" {
		t.Fatalf("unexpected rows: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListFailsClosedWithoutAssignment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewRequestRepo(db)

	cols := []string{"id", "item_id", "qty", "requested_by", "note", "section", "building_type", "budget", "current_price", "project_site", "status", "approved_by", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .+ FROM requests WHERE 1 = 1 AND 1 = 0 ORDER BY`).
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.List(context.Background(), auth.SiteScope(""), "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no rows under an unassigned scope, got %d", len(got))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateTxPopulatesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewRequestRepo(db)

	site := "Alpha Court"
	req := &model.Request{
		ItemID: 2, Qty: 5, RequestedBy: "Admin - Alpha Court",
		Note: "restock", Section: "materials", BuildingType: "Flats",
		Budget: "Budget 1 - Flats(Woods)", CurrentPrice: 120, Site: &site,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO requests`).
		WithArgs(req.ItemID, req.Qty, req.RequestedBy, req.Note, req.Section, req.BuildingType, req.Budget, req.CurrentPrice, site, model.StatusPending).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := repo.CreateTx(context.Background(), tx, req); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if req.ID != 41 {
		t.Fatalf("ID = %d, want 41", req.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
