package gradebook

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// GradeView is one grade as shown on a student page.
type GradeView struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	Assignment   string    `json:"assignment"`
	Date         string    `json:"date,omitempty"`
	Score        float64   `json:"score"`
	MaxPoints    float64   `json:"max_points"`
}

// StudentSummary is a student with aggregate percentages.
type StudentSummary struct {
	Email             string      `json:"email"`
	FirstName         string      `json:"first_name"`
	LastName          string      `json:"last_name"`
	TotalAssignments  int         `json:"total_assignments"`
	TotalPoints       float64     `json:"total_points"`
	MaxPossible       float64     `json:"max_possible"`
	AveragePercentage float64     `json:"average_percentage"`
	Grades            []GradeView `json:"grades"`
}

// AssignmentSummary is an assignment with the number of graded students.
type AssignmentSummary struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Date         string      `json:"date,omitempty"`
	MaxPoints    float64     `json:"max_points"`
	StudentCount int         `json:"student_count"`
	TagIDs       []uuid.UUID `json:"tag_ids"`
}

// AssignmentStats are simple aggregates over one assignment's scores.
type AssignmentStats struct {
	AssignmentSummary
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
	MinScore          float64 `json:"min_score"`
	MaxScore          float64 `json:"max_score"`
}

// Reports answers read queries over the imported gradebook.
type Reports struct {
	q Queries
}

// NewReports creates a Reports reader.
func NewReports(q Queries) *Reports {
	return &Reports{q: q}
}

// Students lists students with their grades and percentages. A non-empty
// search filters by name or email.
func (r *Reports) Students(ctx context.Context, tenantID, search string) ([]StudentSummary, error) {
	rows, err := r.q.ListStudentGrades(ctx, tenantID, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	out := make([]StudentSummary, len(rows))
	for i, sg := range rows {
		out[i] = Summarize(sg)
	}
	return out, nil
}

// Student returns one student by email.
func (r *Reports) Student(ctx context.Context, tenantID, email string) (*StudentSummary, error) {
	sg, err := r.q.GetStudentGrades(ctx, tenantID, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	s := Summarize(*sg)
	return &s, nil
}

// Assignments lists assignments ordered by date (undated last) and name.
func (r *Reports) Assignments(ctx context.Context, tenantID string) ([]AssignmentSummary, error) {
	rows, err := r.q.ListAssignmentScores(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]AssignmentSummary, len(rows))
	for i, as := range rows {
		out[i] = summarizeAssignment(as)
	}
	return out, nil
}

// AssignmentStats returns the score aggregates of one assignment.
func (r *Reports) AssignmentStats(ctx context.Context, tenantID string, id uuid.UUID) (*AssignmentStats, error) {
	as, err := r.q.GetAssignmentScores(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return ComputeAssignmentStats(*as), nil
}

// Uploads returns the newest upload records first.
func (r *Reports) Uploads(ctx context.Context, tenantID string, limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.q.ListUploads(ctx, tenantID, limit)
}

// Summarize computes a student's totals. The percentage is rounded to one
// decimal and is 0 when nothing is graded.
func Summarize(sg StudentGrades) StudentSummary {
	s := StudentSummary{
		Email:            sg.Student.Email,
		FirstName:        sg.Student.FirstName,
		LastName:         sg.Student.LastName,
		TotalAssignments: len(sg.Grades),
		Grades:           make([]GradeView, len(sg.Grades)),
	}
	for i, g := range sg.Grades {
		s.TotalPoints += g.Score
		s.MaxPossible += g.MaxPoints
		s.Grades[i] = GradeView{
			AssignmentID: g.AssignmentID,
			Assignment:   g.Assignment,
			Date:         FormatDate(g.Date),
			Score:        g.Score,
			MaxPoints:    g.MaxPoints,
		}
	}
	if s.MaxPossible > 0 {
		s.AveragePercentage = round1(s.TotalPoints / s.MaxPossible * 100)
	}
	return s
}

func summarizeAssignment(as AssignmentScores) AssignmentSummary {
	tags := as.Assignment.TagIDs
	if tags == nil {
		tags = []uuid.UUID{}
	}
	return AssignmentSummary{
		ID:           as.Assignment.ID,
		Name:         as.Assignment.Name,
		Date:         FormatDate(as.Assignment.Date),
		MaxPoints:    as.Assignment.MaxPoints,
		StudentCount: len(as.Scores),
		TagIDs:       tags,
	}
}

// ComputeAssignmentStats aggregates an assignment's scores. All aggregates
// are 0 when there are no scores.
func ComputeAssignmentStats(as AssignmentScores) *AssignmentStats {
	st := &AssignmentStats{AssignmentSummary: summarizeAssignment(as)}
	if len(as.Scores) == 0 {
		return st
	}

	sum := 0.0
	for _, s := range as.Scores {
		sum += s
	}
	st.AverageScore = round1(sum / float64(len(as.Scores)))
	st.MinScore = slices.Min(as.Scores)
	st.MaxScore = slices.Max(as.Scores)
	if as.Assignment.MaxPoints > 0 {
		st.AveragePercentage = round1(sum / float64(len(as.Scores)) / as.Assignment.MaxPoints * 100)
	}
	return st
}

// MatchesStudent reports whether a student matches a search query. The
// query is compared case-insensitively as a substring of the first name,
// last name, email, "first last" and "last, first".
func MatchesStudent(s Student, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	first := strings.ToLower(s.FirstName)
	last := strings.ToLower(s.LastName)
	for _, field := range []string{
		first,
		last,
		strings.ToLower(s.Email),
		first + " " + last,
		last + ", " + first,
	} {
		if strings.Contains(field, q) {
			return true
		}
	}
	return false
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
