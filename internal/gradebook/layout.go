package gradebook

import (
	"fmt"
	"strings"
)

// IdentityColumnCount is the number of leading columns holding last name,
// first name and email, in that order.
const IdentityColumnCount = 3

// LayoutConfig locates the metadata rows. Row numbers count the header as
// row 0. A negative DateRow or PointsRow means the file has no such row.
type LayoutConfig struct {
	DateRow         int
	PointsRow       int
	FirstStudentRow int
}

// DefaultLayout is header, date row, points row, then students.
var DefaultLayout = LayoutConfig{DateRow: 1, PointsRow: 2, FirstStudentRow: 3}

// MinRows is the smallest grid (header included) this layout accepts: the
// metadata block plus one student.
func (c LayoutConfig) MinRows() int {
	return c.FirstStudentRow + 1
}

// Validate checks that the rows are ordered and do not overlap.
func (c LayoutConfig) Validate() error {
	if c.FirstStudentRow < 1 {
		return fmt.Errorf("first student row must be at least 1, got %d", c.FirstStudentRow)
	}
	for name, row := range map[string]int{"date": c.DateRow, "points": c.PointsRow} {
		if row == 0 || row >= c.FirstStudentRow {
			return fmt.Errorf("%s row %d must be between 1 and %d", name, row, c.FirstStudentRow-1)
		}
	}
	if c.DateRow > 0 && c.DateRow == c.PointsRow {
		return fmt.Errorf("date and points rows must differ, both are %d", c.DateRow)
	}
	return nil
}

// IdentityColumns holds the column indexes of the student identity fields.
type IdentityColumns struct {
	LastName  int
	FirstName int
	Email     int
}

// AssignmentColumn is one candidate assignment: its header text and its
// position in the grid.
type AssignmentColumn struct {
	Name  string
	Index int
}

// StudentRow is one student line. Line is the 1-based line number in the
// source file, header included.
type StudentRow struct {
	Line  int
	Cells []string
}

// Layout is the classified structure of a gradebook grid. It is computed
// once and read by index afterwards.
type Layout struct {
	Identity    IdentityColumns
	Assignments []AssignmentColumn
	DateRow     []string // nil when the layout has no date row
	PointsRow   []string // nil when the layout has no points row
	Students    []StudentRow
}

// Classify splits a grid into identity columns, assignment columns,
// metadata rows and student rows.
//
// The first three columns are last name, first name and email regardless of
// their header text. Every later column is an assignment named by its
// header. Fewer than cfg.MinRows() rows yields ErrInsufficientRows; fewer
// than three columns yields ErrMissingIdentityColumns.
func Classify(g *Grid, cfg LayoutConfig) (*Layout, error) {
	total := len(g.Rows) + 1
	if total < cfg.MinRows() {
		return nil, fmt.Errorf("%w: got %d rows, need at least %d", ErrInsufficientRows, total, cfg.MinRows())
	}
	if g.Width() < IdentityColumnCount {
		return nil, fmt.Errorf("%w: got %d columns, need at least %d", ErrMissingIdentityColumns, g.Width(), IdentityColumnCount)
	}

	l := &Layout{
		Identity:  IdentityColumns{LastName: 0, FirstName: 1, Email: 2},
		DateRow:   metadataRow(g, cfg.DateRow),
		PointsRow: metadataRow(g, cfg.PointsRow),
	}

	for i := IdentityColumnCount; i < g.Width(); i++ {
		l.Assignments = append(l.Assignments, AssignmentColumn{
			Name:  strings.TrimSpace(g.Header[i]),
			Index: i,
		})
	}

	for i := cfg.FirstStudentRow - 1; i < len(g.Rows); i++ {
		l.Students = append(l.Students, StudentRow{Line: i + 2, Cells: g.Rows[i]})
	}

	return l, nil
}

// metadataRow returns the grid row at position row (header = 0), or nil.
func metadataRow(g *Grid, row int) []string {
	if row <= 0 || row-1 >= len(g.Rows) {
		return nil
	}
	return g.Rows[row-1]
}

func cellAt(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

// DateCell returns the raw date-row cell of a column.
func (l *Layout) DateCell(col int) string { return cellAt(l.DateRow, col) }

// PointsCell returns the raw points-row cell of a column.
func (l *Layout) PointsCell(col int) string { return cellAt(l.PointsRow, col) }

// Email returns the normalized email of a student row.
func (l *Layout) Email(s StudentRow) string {
	return NormalizeEmail(cellAt(s.Cells, l.Identity.Email))
}

// FirstName returns the trimmed first name of a student row.
func (l *Layout) FirstName(s StudentRow) string {
	return strings.TrimSpace(cellAt(s.Cells, l.Identity.FirstName))
}

// LastName returns the trimmed last name of a student row.
func (l *Layout) LastName(s StudentRow) string {
	return strings.TrimSpace(cellAt(s.Cells, l.Identity.LastName))
}

// Score returns the parsed score of a student row in a column.
func (l *Layout) Score(s StudentRow, col int) (float64, bool) {
	return ParseScore(cellAt(s.Cells, col))
}

// AssignmentNames returns every assignment column name in column order.
func (l *Layout) AssignmentNames() []string {
	names := make([]string, len(l.Assignments))
	for i, a := range l.Assignments {
		names[i] = a.Name
	}
	return names
}
