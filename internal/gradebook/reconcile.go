package gradebook

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/logging"
)

// ContextCheckInterval is how many student rows are reconciled between
// context cancellation checks.
var ContextCheckInterval = 100

// ReconcileInput is everything Reconcile needs from the pure stages.
type ReconcileInput struct {
	TenantID   string
	Layout     *Layout
	Validation *Validation
	Plan       []PlannedAssignment
	TagIDs     []uuid.UUID // attached to assignments the upload creates
}

// Reconciler upserts students, assignments and grades through a Tx.
type Reconciler struct {
	// Placeholders are email cell values treated as missing.
	Placeholders []string
	// ScoreCeiling, when positive, drops scores above it. It is an absolute
	// score, not a multiple of max points.
	ScoreCeiling float64
}

// NewReconciler returns a Reconciler with the default placeholders and no
// score ceiling.
func NewReconciler() *Reconciler {
	return &Reconciler{Placeholders: DefaultMissingPlaceholders}
}

type assignmentKey struct {
	name string
	date string
}

// run holds the per-upload state of one Reconcile call.
type run struct {
	r      *Reconciler
	tx     Tx
	in     ReconcileInput
	report *UploadReport

	assignments map[assignmentKey]*Assignment
}

// Reconcile writes one validated upload through tx. It never commits or
// rolls back; the caller owns the transaction and must roll back on error.
//
// Rows whose email is blank or a missing-value placeholder are skipped.
// For every other row the student is created or has its names updated,
// and every parseable score of a planned assignment is written, creating
// the assignment on first use. Unparseable scores are skipped and never
// delete an existing grade.
func (r *Reconciler) Reconcile(ctx context.Context, tx Tx, in ReconcileInput) (*UploadReport, error) {
	if in.Layout == nil || in.Validation == nil {
		return nil, fmt.Errorf("%w: reconcile needs a layout and a validation", ErrInvalidInput)
	}

	u := &run{
		r:  r,
		tx: tx,
		in: in,
		report: &UploadReport{
			Status:                StatusSuccess,
			TotalStudents:         len(in.Layout.Students),
			TotalAssignmentsFound: len(in.Layout.Assignments),
			ValidAssignments:      in.Validation.ValidNames(),
			SkippedAssignments:    in.Validation.SkippedNames(),
			ProcessedAssignments:  len(in.Validation.Valid),
			Threshold:             in.Validation.Threshold,
		},
		assignments: make(map[assignmentKey]*Assignment, len(in.Plan)),
	}

	u.in.TagIDs = uniqueIDs(in.TagIDs)
	if len(u.in.TagIDs) > 0 {
		tags, err := tx.FindTags(ctx, in.TenantID, u.in.TagIDs)
		if err != nil {
			return nil, fmt.Errorf("find tags: %w", err)
		}
		if missing := len(u.in.TagIDs) - len(tags); missing > 0 {
			return nil, fmt.Errorf("%w: %d of %d tags not found", ErrInvalidInput, missing, len(u.in.TagIDs))
		}
	}

	for i, row := range in.Layout.Students {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := u.row(ctx, row); err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
	}

	return u.report, nil
}

func (u *run) row(ctx context.Context, row StudentRow) error {
	l := u.in.Layout
	email := l.Email(row)
	if IsMissing(email, u.r.Placeholders) {
		u.report.SkippedRows++
		return nil
	}
	u.report.ProcessedStudents++

	student, err := u.upsertStudent(ctx, email, l.FirstName(row), l.LastName(row))
	if err != nil {
		return err
	}

	for _, p := range u.in.Plan {
		score, ok := l.Score(row, p.Index)
		if !ok {
			continue
		}
		if u.r.ScoreCeiling > 0 && score > u.r.ScoreCeiling {
			u.report.ScoresRejected++
			continue
		}

		a, err := u.assignment(ctx, p)
		if err != nil {
			return err
		}
		if err := u.upsertGrade(ctx, student.ID, a.ID, score); err != nil {
			return err
		}
		if score > a.MaxPoints {
			u.report.ScoresAboveMax++
		}
	}
	return nil
}

func (u *run) upsertStudent(ctx context.Context, email, first, last string) (*Student, error) {
	s, err := u.tx.FindStudent(ctx, u.in.TenantID, email)
	switch {
	case errors.Is(err, ErrNotFound):
		s = &Student{TenantID: u.in.TenantID, Email: email, FirstName: first, LastName: last}
		if err := u.tx.SaveStudent(ctx, s); err != nil {
			return nil, fmt.Errorf("create student %s: %w", email, err)
		}
		u.report.StudentsCreated++
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("find student %s: %w", email, err)
	}

	if s.FirstName == first && s.LastName == last {
		return s, nil
	}
	s.FirstName, s.LastName = first, last
	if err := u.tx.SaveStudent(ctx, s); err != nil {
		return nil, fmt.Errorf("update student %s: %w", email, err)
	}
	u.report.StudentsUpdated++
	return s, nil
}

// assignment returns the assignment for a planned column, creating it on
// first use. Columns sharing (name, date) resolve to the same assignment.
func (u *run) assignment(ctx context.Context, p PlannedAssignment) (*Assignment, error) {
	key := assignmentKey{name: p.Name, date: FormatDate(p.Date)}
	if a, ok := u.assignments[key]; ok {
		return a, nil
	}

	a, err := u.tx.FindAssignment(ctx, u.in.TenantID, p.Name, p.Date)
	switch {
	case errors.Is(err, ErrNotFound):
		a = &Assignment{
			TenantID:  u.in.TenantID,
			Name:      p.Name,
			Date:      p.Date,
			MaxPoints: p.MaxPoints,
			TagIDs:    slices.Clone(u.in.TagIDs),
		}
		if err := u.tx.SaveAssignment(ctx, a); err != nil {
			return nil, fmt.Errorf("create assignment %q: %w", p.Name, err)
		}
		u.report.AssignmentsCreated++
		logging.FromContext(ctx).Debug("assignment created",
			"tenant_id", u.in.TenantID,
			"assignment", p.Name,
			"date", FormatDate(p.Date),
			"max_points", p.MaxPoints)
	case err != nil:
		return nil, fmt.Errorf("find assignment %q: %w", p.Name, err)
	}

	u.assignments[key] = a
	return a, nil
}

func (u *run) upsertGrade(ctx context.Context, studentID, assignmentID uuid.UUID, score float64) error {
	g, err := u.tx.FindGrade(ctx, studentID, assignmentID)
	switch {
	case errors.Is(err, ErrNotFound):
		g = &Grade{StudentID: studentID, AssignmentID: assignmentID, Score: score}
		if err := u.tx.SaveGrade(ctx, g); err != nil {
			return fmt.Errorf("create grade: %w", err)
		}
		u.report.GradesCreated++
		return nil
	case err != nil:
		return fmt.Errorf("find grade: %w", err)
	}

	if g.Score == score {
		return nil
	}
	g.Score = score
	if err := u.tx.SaveGrade(ctx, g); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	u.report.GradesUpdated++
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
