package gradebook

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// csvOf joins rows into CSV text. Cells must not contain commas.
func csvOf(rows ...[]string) []byte {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, ","))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func mustClassify(t *testing.T, data []byte) *Layout {
	t.Helper()
	g, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	l, err := Classify(g, DefaultLayout)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	return l
}

func TestClassify(t *testing.T) {
	l := mustClassify(t, csvOf(
		[]string{"Surname", "Given", "Mail", "Quiz1", "Quiz2"},
		[]string{"", "", "", "2024-01-10", ""},
		[]string{"", "", "", "10", ""},
		[]string{"Lovelace", "Ada", "ada@example.com", "9", ""},
		[]string{"Hopper", "Grace", "grace@example.com", "", ""},
	))

	if l.Identity != (IdentityColumns{LastName: 0, FirstName: 1, Email: 2}) {
		t.Errorf("Identity = %+v", l.Identity)
	}
	if got := l.AssignmentNames(); strings.Join(got, "|") != "Quiz1|Quiz2" {
		t.Errorf("AssignmentNames() = %v", got)
	}
	if l.Assignments[0].Index != 3 || l.Assignments[1].Index != 4 {
		t.Errorf("assignment indexes = %+v", l.Assignments)
	}
	if len(l.Students) != 2 {
		t.Fatalf("len(Students) = %d, want 2", len(l.Students))
	}
	if l.Students[0].Line != 4 || l.Students[1].Line != 5 {
		t.Errorf("student lines = %d, %d, want 4, 5", l.Students[0].Line, l.Students[1].Line)
	}
	if got := l.DateCell(3); got != "2024-01-10" {
		t.Errorf("DateCell(3) = %q", got)
	}
	if got := l.PointsCell(3); got != "10" {
		t.Errorf("PointsCell(3) = %q", got)
	}
	if got := l.Email(l.Students[0]); got != "ada@example.com" {
		t.Errorf("Email() = %q", got)
	}
	if got := l.LastName(l.Students[1]); got != "Hopper" {
		t.Errorf("LastName() = %q", got)
	}
}

func TestClassifyKeepsCellText(t *testing.T) {
	l := mustClassify(t, []byte(
		"Last,First,Email,'Quiz 1',Essay \"Final\",=Midterm\n"+
			",,,,,\n"+
			",,,10,10,10\n"+
			"'t Hooft,Gerard,GERARD@example.com,9,8,7\n"))

	want := []string{"'Quiz 1'", `Essay "Final"`, "=Midterm"}
	got := l.AssignmentNames()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("AssignmentNames() = %q, want %q", got, want)
	}
	if got := l.LastName(l.Students[0]); got != "'t Hooft" {
		t.Errorf("LastName() = %q, want %q", got, "'t Hooft")
	}
	if got := l.FirstName(l.Students[0]); got != "Gerard" {
		t.Errorf("FirstName() = %q, want %q", got, "Gerard")
	}
	if got := l.Email(l.Students[0]); got != "gerard@example.com" {
		t.Errorf("Email() = %q, want %q", got, "gerard@example.com")
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name: "three rows is too few",
			data: csvOf(
				[]string{"L", "F", "E", "Q"},
				[]string{"", "", "", ""},
				[]string{"", "", "", "10"},
			),
			wantErr: ErrInsufficientRows,
		},
		{
			name: "two columns",
			data: csvOf(
				[]string{"L", "F"},
				[]string{"", ""},
				[]string{"", ""},
				[]string{"a", "b"},
			),
			wantErr: ErrMissingIdentityColumns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Parse(tt.data)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			_, err = Classify(g, DefaultLayout)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Classify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassifyIdentityOnly(t *testing.T) {
	l := mustClassify(t, csvOf(
		[]string{"L", "F", "E"},
		[]string{"", "", ""},
		[]string{"", "", ""},
		[]string{"a", "b", "c@example.com"},
	))
	if len(l.Assignments) != 0 {
		t.Errorf("len(Assignments) = %d, want 0", len(l.Assignments))
	}
}

func TestClassifyCustomLayout(t *testing.T) {
	// Points before dates, and a blank spacer row before the students.
	cfg := LayoutConfig{DateRow: 2, PointsRow: 1, FirstStudentRow: 4}
	g, err := Parse(csvOf(
		[]string{"L", "F", "E", "Q"},
		[]string{"", "", "", "25"},
		[]string{"", "", "", "2024-03-01"},
		[]string{"", "", "", ""},
		[]string{"a", "b", "c@example.com", "20"},
	))
	if err != nil {
		t.Fatal(err)
	}
	l, err := Classify(g, cfg)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if l.PointsCell(3) != "25" || l.DateCell(3) != "2024-03-01" {
		t.Errorf("metadata rows swapped: points=%q date=%q", l.PointsCell(3), l.DateCell(3))
	}
	if len(l.Students) != 1 || l.Students[0].Line != 5 {
		t.Errorf("Students = %+v", l.Students)
	}
}

func TestClassifyWithoutDateRow(t *testing.T) {
	cfg := LayoutConfig{DateRow: -1, PointsRow: 1, FirstStudentRow: 2}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	g, err := Parse(csvOf(
		[]string{"L", "F", "E", "Q"},
		[]string{"", "", "", "10"},
		[]string{"a", "b", "c@example.com", "7"},
	))
	if err != nil {
		t.Fatal(err)
	}
	l, err := Classify(g, cfg)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if l.DateRow != nil {
		t.Errorf("DateRow = %v, want nil", l.DateRow)
	}
	if d := ExtractDate(l, l.Assignments[0]); d.Valid {
		t.Errorf("ExtractDate() = %v, want null", d)
	}
}

func TestLayoutConfigValidate(t *testing.T) {
	tests := []struct {
		cfg     LayoutConfig
		wantErr bool
	}{
		{DefaultLayout, false},
		{LayoutConfig{DateRow: 1, PointsRow: 1, FirstStudentRow: 3}, true},
		{LayoutConfig{DateRow: 3, PointsRow: 2, FirstStudentRow: 3}, true},
		{LayoutConfig{DateRow: 0, PointsRow: 2, FirstStudentRow: 3}, true},
		{LayoutConfig{DateRow: -1, PointsRow: -1, FirstStudentRow: 1}, false},
		{LayoutConfig{DateRow: -1, PointsRow: -1, FirstStudentRow: 0}, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%+v", tt.cfg), func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
