package gradebook

import (
	"errors"
	"fmt"
)

// Input errors. They are user-correctable and never cause writes.
var (
	ErrUnreadableFile         = errors.New("unreadable file")
	ErrEmptyFile              = errors.New("empty file")
	ErrInsufficientRows       = errors.New("insufficient rows")
	ErrMissingIdentityColumns = errors.New("missing identity columns")
	ErrNoValidAssignments     = errors.New("no assignments have sufficient data")
	ErrInvalidInput           = errors.New("invalid input")
)

// Store and coordination errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrUploadInProgress = errors.New("upload in progress")
)

// IsInputError reports whether err is a user-correctable input error.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrUnreadableFile,
		ErrEmptyFile,
		ErrInsufficientRows,
		ErrMissingIdentityColumns,
		ErrNoValidAssignments,
		ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RejectionError reports an upload that parsed correctly but had nothing to
// import. It unwraps to ErrNoValidAssignments.
type RejectionError struct {
	TotalStudents      int
	Threshold          int
	AllAssignments     []string
	SkippedAssignments []string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %d students, threshold %d, %d of %d assignments skipped",
		ErrNoValidAssignments, e.TotalStudents, e.Threshold,
		len(e.SkippedAssignments), len(e.AllAssignments))
}

func (e *RejectionError) Unwrap() error {
	return ErrNoValidAssignments
}

// RejectionDocument is the serialized form of a rejected upload.
type RejectionDocument struct {
	Error              string   `json:"error"`
	TotalStudents      int      `json:"total_students"`
	Threshold          int      `json:"threshold"`
	AllAssignments     []string `json:"all_assignments"`
	SkippedAssignments []string `json:"skipped_assignments"`
}

// Document returns the key-value document sent back to the uploader.
func (e *RejectionError) Document() RejectionDocument {
	return RejectionDocument{
		Error:              "No assignments have sufficient data",
		TotalStudents:      e.TotalStudents,
		Threshold:          e.Threshold,
		AllAssignments:     nonNil(e.AllAssignments),
		SkippedAssignments: nonNil(e.SkippedAssignments),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
