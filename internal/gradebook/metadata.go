package gradebook

import "github.com/jackc/pgx/v5/pgtype"

// PlannedAssignment is a valid column with its metadata resolved: the
// identity (Name, Date) and the max points it is created with.
type PlannedAssignment struct {
	Name      string
	Index     int
	Date      pgtype.Date
	MaxPoints float64
}

// ExtractDate returns the due date of an assignment column. A blank,
// unparseable or epoch-artifact cell yields an invalid (null) date.
func ExtractDate(l *Layout, col AssignmentColumn) pgtype.Date {
	return ParseDate(l.DateCell(col.Index))
}

// Plan resolves the metadata of every valid column, once per column.
func Plan(l *Layout, v *Validation) []PlannedAssignment {
	plan := make([]PlannedAssignment, len(v.Valid))
	for i, a := range v.Valid {
		plan[i] = PlannedAssignment{
			Name:      a.Column.Name,
			Index:     a.Column.Index,
			Date:      ExtractDate(l, a.Column),
			MaxPoints: a.MaxPoints,
		}
	}
	return plan
}
