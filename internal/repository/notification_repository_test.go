package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/istrom/site-inventory/internal/auth"
)

func TestVisibleToGlobalAdminIncludesBroadcasts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewNotificationRepo(db)

	cols := []string{"id", "kind", "title", "message", "target_id", "request_id", "is_read", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(1, "request", "New request", "restock", nil, 7, false, time.Now()).
		AddRow(2, "approval", "Request approved", "done", 1, 7, false, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(`(target_id IS NULL OR target_id = ?)`)).
		WithArgs(uint64(1)).
		WillReturnRows(rows)

	got, err := repo.VisibleTo(context.Background(), auth.Identity{CredentialID: 1, Role: auth.RoleGlobalAdmin})
	if err != nil {
		t.Fatalf("VisibleTo: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].TargetID != nil {
		t.Fatal("broadcast row should have nil target")
	}
	if got[1].TargetID == nil || *got[1].TargetID != 1 {
		t.Fatalf("targeted row lost its target: %+v", got[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVisibleToSiteAdminIsTargetedOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewNotificationRepo(db)

	cols := []string{"id", "kind", "title", "message", "target_id", "request_id", "is_read", "created_at"}
	mock.ExpectQuery(`WHERE target_id = \? ORDER BY`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.VisibleTo(context.Background(), auth.Identity{CredentialID: 5, Role: auth.RoleSiteAdmin, Site: "Alpha Court"})
	if err != nil {
		t.Fatalf("VisibleTo: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no rows, got %d", len(got))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteByRequestTxCascades(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	notifs := NewNotificationRepo(db)
	reqs := NewRequestRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM notifications WHERE request_id = ?`)).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM requests WHERE id = ?`)).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := notifs.DeleteByRequestTx(context.Background(), tx, 7); err != nil {
		t.Fatalf("DeleteByRequestTx: %v", err)
	}
	if err := reqs.DeleteTx(context.Background(), tx, 7); err != nil {
		t.Fatalf("DeleteTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
