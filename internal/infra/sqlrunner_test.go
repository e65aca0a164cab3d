package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestExtractMarker(t *testing.T) {
	query := "\n--sql 0f6a5c1e-3b0a-4d4e-9d0b-6f1b2a7e8c90\nselect 1;\n"
	marker, body, err := ExtractMarker(query)
	if err != nil {
		t.Fatalf("ExtractMarker returned error: %v", err)
	}
	if marker != "0f6a5c1e-3b0a-4d4e-9d0b-6f1b2a7e8c90" {
		t.Fatalf("marker mismatch: %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body mismatch: %q", body)
	}
}

func TestExtractMarkerRejectsUnmarked(t *testing.T) {
	cases := map[string]string{
		"empty":      "   ",
		"no marker":  "select 1;",
		"bad uuid":   "--sql not-a-uuid\nselect 1;",
		"upper case": "--sql 0F6A5C1E-3B0A-4D4E-9D0B-6F1B2A7E8C90\nselect 1;",
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ExtractMarker(query); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsNoRows(fmt.Errorf("lookup: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows not detected")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatal("unexpected no rows match")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("unique violation not detected")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation misclassified")
	}
}
