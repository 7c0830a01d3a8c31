package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// compareDates orders dated before undated, then by day.
func compareDates(a, b gradebook.Assignment) int {
	switch {
	case a.Date.Valid && !b.Date.Valid:
		return -1
	case !a.Date.Valid && b.Date.Valid:
		return 1
	case a.Date.Valid:
		if c := a.Date.Time.Compare(b.Date.Time); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.Name, b.Name)
}

func (d *data) studentGrades(s gradebook.Student) gradebook.StudentGrades {
	sg := gradebook.StudentGrades{Student: s, Grades: []gradebook.GradeEntry{}}
	var assigned []gradebook.Assignment
	scores := make(map[uuid.UUID]float64)
	for _, g := range d.grades {
		if g.StudentID != s.ID {
			continue
		}
		a := d.assignments[g.AssignmentID]
		assigned = append(assigned, a)
		scores[a.ID] = g.Score
	}
	slices.SortFunc(assigned, compareDates)
	for _, a := range assigned {
		sg.Grades = append(sg.Grades, gradebook.GradeEntry{
			AssignmentID: a.ID,
			Assignment:   a.Name,
			Date:         a.Date,
			MaxPoints:    a.MaxPoints,
			Score:        scores[a.ID],
		})
	}
	return sg
}

func (d *data) assignmentScores(a gradebook.Assignment) gradebook.AssignmentScores {
	as := gradebook.AssignmentScores{Assignment: a, Scores: []float64{}}
	as.Assignment.TagIDs = slices.Clone(a.TagIDs)
	for _, g := range d.grades {
		if g.AssignmentID == a.ID {
			as.Scores = append(as.Scores, g.Score)
		}
	}
	slices.Sort(as.Scores)
	return as
}

func (s *Store) ListStudentGrades(ctx context.Context, tenantID, search string) ([]gradebook.StudentGrades, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var students []gradebook.Student
	for _, st := range s.committed.students {
		if st.TenantID == tenantID && gradebook.MatchesStudent(st, search) {
			students = append(students, st)
		}
	}
	slices.SortFunc(students, func(a, b gradebook.Student) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)),
			cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)),
			cmp.Compare(a.Email, b.Email),
		)
	})

	out := make([]gradebook.StudentGrades, len(students))
	for i, st := range students {
		out[i] = s.committed.studentGrades(st)
	}
	return out, nil
}

func (s *Store) GetStudentGrades(ctx context.Context, tenantID, email string) (*gradebook.StudentGrades, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.committed.studentByEmail[studentKey(tenantID, email)]
	if !ok {
		return nil, gradebook.ErrNotFound
	}
	sg := s.committed.studentGrades(s.committed.students[id])
	return &sg, nil
}

func (s *Store) ListAssignmentScores(ctx context.Context, tenantID string) ([]gradebook.AssignmentScores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []gradebook.Assignment
	for _, a := range s.committed.assignments {
		if a.TenantID == tenantID {
			list = append(list, a)
		}
	}
	slices.SortFunc(list, compareDates)

	out := make([]gradebook.AssignmentScores, len(list))
	for i, a := range list {
		out[i] = s.committed.assignmentScores(a)
	}
	return out, nil
}

func (s *Store) GetAssignmentScores(ctx context.Context, tenantID string, id uuid.UUID) (*gradebook.AssignmentScores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.committed.assignments[id]
	if !ok || a.TenantID != tenantID {
		return nil, gradebook.ErrNotFound
	}
	as := s.committed.assignmentScores(a)
	return &as, nil
}

func (s *Store) ListUploads(ctx context.Context, tenantID string, limit int) ([]gradebook.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []gradebook.UploadRecord{}
	for i := len(s.committed.uploads) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if u := s.committed.uploads[i]; u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

// Counts returns the number of students, assignments and grades held for a
// tenant.
func (s *Store) Counts(tenantID string) (students, assignments, grades int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.committed.students {
		if st.TenantID == tenantID {
			students++
		}
	}
	for _, a := range s.committed.assignments {
		if a.TenantID == tenantID {
			assignments++
		}
	}
	for _, g := range s.committed.grades {
		if a, ok := s.committed.assignments[g.AssignmentID]; ok && a.TenantID == tenantID {
			grades++
		}
	}
	return students, assignments, grades
}
