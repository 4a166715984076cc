package migrations

import (
	"strings"
	"testing"
)

// Registration runs at package init and panics on a malformed migration file
// name, so loading this test package at all covers the naming contract.
func TestMigrationsRegistered(t *testing.T) {
	sorted := Migrations.Sorted()
	if len(sorted) != 1 {
		t.Fatalf("expected 1 registered migration, got %d", len(sorted))
	}
	m := sorted[0]
	if m.Name != "20250101000000" {
		t.Fatalf("unexpected migration name %q", m.Name)
	}
	if m.Comment != "create_quiz_results" {
		t.Fatalf("unexpected migration comment %q", m.Comment)
	}
	if !strings.Contains(createQuizResultsSQL, "quiz_results") {
		t.Fatalf("embedded SQL does not create quiz_results:\n%s", createQuizResultsSQL)
	}
}
