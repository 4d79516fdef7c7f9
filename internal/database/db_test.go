package database

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 6 {
		t.Fatalf("got %d statements, want 6", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Errorf("statement is not idempotent: %.40q", s)
		}
	}
	joined := strings.Join(stmts, "\n")
	for _, want := range []string{
		"UNIQUE KEY uq_codes_theater_name (theater_id, qr_name)",
		"UNIQUE KEY uq_code_seats_code_seat (code_id, seat)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("schema lacks %q", want)
		}
	}
}
