package gradebook

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestSummarize(t *testing.T) {
	sg := StudentGrades{
		Student: Student{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"},
		Grades: []GradeEntry{
			{Assignment: "Quiz", Date: ParseDate("2024-01-10"), MaxPoints: 10, Score: 9},
			{Assignment: "Lab", MaxPoints: 20, Score: 13},
		},
	}

	s := Summarize(sg)
	if s.TotalAssignments != 2 || s.TotalPoints != 22 || s.MaxPossible != 30 {
		t.Errorf("totals = %+v", s)
	}
	// 22/30 = 73.333...
	if s.AveragePercentage != 73.3 {
		t.Errorf("AveragePercentage = %v, want 73.3", s.AveragePercentage)
	}
	if s.Grades[0].Date != "2024-01-10" || s.Grades[1].Date != "" {
		t.Errorf("grade dates = %q, %q", s.Grades[0].Date, s.Grades[1].Date)
	}
}

func TestSummarizeNoGrades(t *testing.T) {
	s := Summarize(StudentGrades{Student: Student{Email: "x@example.com"}})
	if s.AveragePercentage != 0 || s.TotalAssignments != 0 {
		t.Errorf("empty summary = %+v", s)
	}
	if s.Grades == nil {
		t.Error("Grades should be an empty slice")
	}
}

func TestComputeAssignmentStats(t *testing.T) {
	as := AssignmentScores{
		Assignment: Assignment{ID: uuid.New(), Name: "Quiz", MaxPoints: 10, Date: pgtype.Date{}},
		Scores:     []float64{4, 8, 9},
	}
	st := ComputeAssignmentStats(as)
	if st.StudentCount != 3 {
		t.Errorf("StudentCount = %d", st.StudentCount)
	}
	if st.AverageScore != 7 || st.AveragePercentage != 70 {
		t.Errorf("averages = %v, %v", st.AverageScore, st.AveragePercentage)
	}
	if st.MinScore != 4 || st.MaxScore != 9 {
		t.Errorf("min/max = %v/%v", st.MinScore, st.MaxScore)
	}
	if st.TagIDs == nil {
		t.Error("TagIDs should be an empty slice")
	}

	empty := ComputeAssignmentStats(AssignmentScores{Assignment: Assignment{MaxPoints: 10}})
	if empty.StudentCount != 0 || empty.AverageScore != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestMatchesStudent(t *testing.T) {
	s := Student{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"ada", true},
		{"LOVE", true},
		{"example.com", true},
		{"ada lovelace", true},
		{"lovelace, ada", true},
		{"lovelace ada", false},
		{"grace", false},
	}
	for _, tt := range tests {
		if got := MatchesStudent(s, tt.query); got != tt.want {
			t.Errorf("MatchesStudent(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
