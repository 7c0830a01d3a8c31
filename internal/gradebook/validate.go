package gradebook

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultDensityRatio is the fraction of student rows that must carry a
// numeric score for an assignment column to be imported.
const DefaultDensityRatio = 0.1

// Skip reasons reported for excluded columns.
const (
	SkipMissingPoints    = "missing max points"
	SkipInsufficientData = "insufficient data"
)

// ValidAssignment is an assignment column that passed validation.
type ValidAssignment struct {
	Column    AssignmentColumn
	MaxPoints float64
	Scores    int // numeric scores found in the column
}

// SkippedAssignment is an assignment column that failed validation.
type SkippedAssignment struct {
	Column AssignmentColumn
	Reason string
	Scores int
}

// Validation is the outcome of validating every assignment column.
type Validation struct {
	Valid         []ValidAssignment
	Skipped       []SkippedAssignment
	Threshold     int
	TotalStudents int
}

// Threshold returns max(1, floor(students * ratio)).
func Threshold(students int, ratio float64) int {
	// The epsilon keeps products like 30*0.1 from landing a hair below an integer.
	t := int(math.Floor(float64(students)*ratio + 1e-9))
	return max(1, t)
}

// Validate decides, per assignment column, whether it can be imported.
//
// A column without a positive max-points value is always skipped. A column
// with max points is valid when its count of numeric, non-negative scores
// reaches Threshold(len(l.Students), ratio). Columns are independent and
// are evaluated concurrently; results keep column order.
func Validate(l *Layout, ratio float64) *Validation {
	v := &Validation{
		TotalStudents: len(l.Students),
		Threshold:     Threshold(len(l.Students), ratio),
	}

	type result struct {
		points float64
		ok     bool
		scores int
	}
	results := make([]result, len(l.Assignments))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, col := range l.Assignments {
		g.Go(func() error {
			points, ok := ParsePoints(l.PointsCell(col.Index))
			if !ok {
				return nil
			}
			n := 0
			for _, s := range l.Students {
				if _, ok := l.Score(s, col.Index); ok {
					n++
				}
			}
			results[i] = result{points: points, ok: true, scores: n}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	for i, col := range l.Assignments {
		r := results[i]
		switch {
		case !r.ok:
			v.Skipped = append(v.Skipped, SkippedAssignment{Column: col, Reason: SkipMissingPoints})
		case r.scores < v.Threshold:
			v.Skipped = append(v.Skipped, SkippedAssignment{Column: col, Reason: SkipInsufficientData, Scores: r.scores})
		default:
			v.Valid = append(v.Valid, ValidAssignment{Column: col, MaxPoints: r.points, Scores: r.scores})
		}
	}

	return v
}

// ValidNames returns the names of the valid columns in column order.
func (v *Validation) ValidNames() []string {
	names := make([]string, len(v.Valid))
	for i, a := range v.Valid {
		names[i] = a.Column.Name
	}
	return names
}

// SkippedNames returns the names of the skipped columns in column order.
func (v *Validation) SkippedNames() []string {
	names := make([]string, len(v.Skipped))
	for i, a := range v.Skipped {
		names[i] = a.Column.Name
	}
	return names
}

// Err returns a *RejectionError when no column is valid, nil otherwise.
func (v *Validation) Err(all []string) error {
	if len(v.Valid) > 0 {
		return nil
	}
	return &RejectionError{
		TotalStudents:      v.TotalStudents,
		Threshold:          v.Threshold,
		AllAssignments:     all,
		SkippedAssignments: v.SkippedNames(),
	}
}
