// Package gradebook provides the business logic for importing gradebook
// spreadsheets into a normalized store of students, assignments and grades.
//
// The package has no transport dependencies. It can be driven by the web
// handlers, a CLI, or tests without modification.
//
// # Pipeline
//
// An upload flows one way through five stages:
//
//  1. [Parse] decodes raw bytes (UTF-8 with an ISO-8859-1 fallback, or an
//     XLSX workbook) into a [Grid].
//  2. [Classify] splits the grid into identity columns, assignment columns,
//     the date row, the points row and the student rows ([Layout]).
//  3. [Validate] decides which assignment columns are importable: a column
//     needs a positive max-points value and enough numeric scores to meet
//     the density threshold.
//  4. [ExtractDate] derives the optional due date of each valid column.
//  5. [Reconciler.Reconcile] upserts students, assignments and grades
//     through a [Tx] and returns an [UploadReport].
//
// Stages 1-4 are pure. Only stage 5 touches the store, and it runs inside a
// single transaction owned by [Importer]: either every change of an upload
// is committed or none is.
//
// # Identity rules
//
//   - Student: (tenant, lowercased trimmed email)
//   - Assignment: (tenant, name, date), where a missing date is its own bucket
//   - Grade: (student, assignment); the last upload wins
//
// Uploading the same file twice leaves the store unchanged.
//
// # Error Handling
//
// Input problems are reported with sentinel errors ([ErrUnreadableFile],
// [ErrEmptyFile], [ErrInsufficientRows], [ErrMissingIdentityColumns],
// [ErrNoValidAssignments]) and never cause writes. A rejected upload carries
// a [RejectionError] with the counts the uploader needs to fix the file.
// [MapError] turns any error into a coded, user-facing message.
package gradebook
