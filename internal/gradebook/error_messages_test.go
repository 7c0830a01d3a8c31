package gradebook

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unreadable file", fmt.Errorf("parse: %w", ErrUnreadableFile), "FILE002"},
		{"empty file", ErrEmptyFile, "FILE003"},
		{"insufficient rows", fmt.Errorf("classify: %w: 3 rows", ErrInsufficientRows), "LAY001"},
		{"missing identity", ErrMissingIdentityColumns, "LAY002"},
		{"rejection error unwraps", &RejectionError{TotalStudents: 4, Threshold: 1}, "VAL001"},
		{"conflict", fmt.Errorf("create tag: %w", ErrConflict), "DB001"},
		{"upload in progress", ErrUploadInProgress, "UPL001"},
		{"file too large pattern", errors.New("file too large: 12MB exceeds limit"), "FILE001"},
		{"deadline before generic timeout", errors.New("context deadline exceeded"), "UPL004"},
		{"generic timeout", errors.New("i/o timeout"), "DB004"},
		{"case insensitive", errors.New("Dial TCP: CONNECTION REFUSED"), "DB003"},
		{"unknown error", errors.New("boom"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrEmptyFile)
	want := "The uploaded file has no rows (Code: FILE003). Upload a gradebook export that contains student rows"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(ErrInsufficientRows) {
		t.Error("IsUserFacing(ErrInsufficientRows) = false")
	}
	if IsUserFacing(errors.New("something odd")) {
		t.Error("IsUserFacing(unknown) = true")
	}
}

func TestIsInputError(t *testing.T) {
	if !IsInputError(&RejectionError{}) {
		t.Error("rejection should be an input error")
	}
	if IsInputError(ErrConflict) {
		t.Error("conflict should not be an input error")
	}
}

func TestRejectionDocument(t *testing.T) {
	doc := (&RejectionError{TotalStudents: 20, Threshold: 2}).Document()
	if doc.Error != "No assignments have sufficient data" {
		t.Errorf("Error = %q", doc.Error)
	}
	if doc.AllAssignments == nil || doc.SkippedAssignments == nil {
		t.Error("lists should serialize as empty arrays, not null")
	}
}
