package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, gradebook.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), gradebook.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "students_tenant_id_email_key"}, gradebook.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, gradebook.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("mapError() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("mapError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapErrorPassesThroughOtherErrors(t *testing.T) {
	check := &pgconn.PgError{Code: "23514", Message: "violates check constraint"}
	if got := mapError(check); got != check {
		t.Errorf("mapError() = %v, want original error", got)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"tenants", "students", "assignments", "grades", "tags", "assignment_tags", "uploads"} {
		if !containsTable(schemaSQL, table) {
			t.Errorf("schema missing table %s", table)
		}
	}
}

func containsTable(schema, table string) bool {
	return strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
}
