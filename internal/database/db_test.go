package database

import (
	"strings"
	"testing"
)

func TestDSNReportsMatchedRows(t *testing.T) {
	got := dsn("inv", "secret", "db.local", "3306", "inventory")
	if !strings.HasPrefix(got, "inv:secret@tcp(db.local:3306)/inventory?") {
		t.Fatalf("unexpected dsn prefix: %s", got)
	}
	for _, param := range []string{"clientFoundRows=true", "parseTime=true", "loc=UTC"} {
		if !strings.Contains(got, param) {
			t.Errorf("dsn missing %s: %s", param, got)
		}
	}
}

func TestDSNOmitsEmptyPassword(t *testing.T) {
	got := dsn("inv", "", "localhost", "3306", "inventory")
	if !strings.HasPrefix(got, "inv@tcp(") {
		t.Fatalf("expected bare user without colon, got: %s", got)
	}
}
