package gradebook

// error_messages.go maps errors to user-facing messages with support codes.
//
// # Error Codes Reference
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Action: Remove unused columns or split the class into smaller files
//	FILE002 - Unreadable file: File could not be read as CSV or XLSX
//	          Action: Export the gradebook again as CSV (UTF-8) or XLSX
//	FILE003 - Empty file: The uploaded file has no rows
//	          Action: Upload a gradebook export that contains student rows
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV or XLSX file to upload
//
// # Layout Errors (LAY001-LAY099)
//
//	LAY001 - Insufficient rows: Header, date row, points row and one student required
//	         Action: Add the date and points rows below the header
//	LAY002 - Missing identity columns: Last name, first name and email required
//	         Action: Make sure the first three columns are last name, first name, email
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - No valid assignments: No assignment has max points and enough scores
//	         Action: Fill in the points row and enter scores for at least 10% of students
//	VAL002 - Invalid input: A submitted value failed validation
//	         Action: Check the highlighted fields and try again
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Conflict: A record with this name already exists
//	DB002 - Not found: The requested record does not exist
//	DB003 - Connection refused: Unable to connect to database
//	DB004 - Timeout: Operation timed out
//	DB005 - Deadlock: Database was busy with conflicting operations
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Upload in progress: Another upload for this school is running
//	UPL002 - System busy: Too many uploads in progress
//	UPL003 - Request cancelled: Request was cancelled
//	UPL004 - Request timeout: Request timed out
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// Sentinel errors are matched first with errors.Is. Anything else falls back
// to case-insensitive substring matching on the error text; the first match
// wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrUnreadableFile, UserMessage{
		Message: "File could not be read as CSV or XLSX",
		Action:  "Export the gradebook again as CSV (UTF-8) or XLSX",
		Code:    "FILE002",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file has no rows",
		Action:  "Upload a gradebook export that contains student rows",
		Code:    "FILE003",
	}},
	{ErrInsufficientRows, UserMessage{
		Message: "The file needs a header, a date row, a points row and at least one student",
		Action:  "Add the date and points rows below the header",
		Code:    "LAY001",
	}},
	{ErrMissingIdentityColumns, UserMessage{
		Message: "The file needs last name, first name and email columns",
		Action:  "Make sure the first three columns are last name, first name, email",
		Code:    "LAY002",
	}},
	{ErrNoValidAssignments, UserMessage{
		Message: "No assignments have sufficient data",
		Action:  "Fill in the points row and enter scores for at least 10% of students",
		Code:    "VAL001",
	}},
	{ErrInvalidInput, UserMessage{
		Message: "A submitted value failed validation",
		Action:  "Check the highlighted fields and try again",
		Code:    "VAL002",
	}},
	{ErrConflict, UserMessage{
		Message: "A record with this name already exists",
		Action:  "Choose a different name",
		Code:    "DB001",
	}},
	{ErrNotFound, UserMessage{
		Message: "The requested record does not exist",
		Action:  "Refresh the page and try again",
		Code:    "DB002",
	}},
	{ErrUploadInProgress, UserMessage{
		Message: "Another upload for this school is running",
		Action:  "Wait for it to finish and upload again",
		Code:    "UPL001",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that arrive without a sentinel, mostly from
// drivers and the HTTP layer. More specific patterns come first.
var errorPatterns = []errorPattern{
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Remove unused columns or split the class into smaller files",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or XLSX file to upload",
		Code:    "FILE004",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB003",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"too many uploads", UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL003",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL004",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB004",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns a single-line message suitable for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than the
// default message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
