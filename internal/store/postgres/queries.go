package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// Read queries share the store's ordering: assignments dated first by day,
// undated last, ties by name.
const assignmentOrder = `a.due_date ASC NULLS LAST, a.name`

func (s *Store) ListStudentGrades(ctx context.Context, tenantID, search string) ([]gradebook.StudentGrades, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE tenant_id = $1
		 ORDER BY lower(last_name), lower(first_name), email`, tenantID)
	if err != nil {
		return nil, mapError(err)
	}

	var students []gradebook.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if gradebook.MatchesStudent(*st, search) {
			students = append(students, *st)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grades, err := s.gradeEntries(ctx, `a.tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}

	out := make([]gradebook.StudentGrades, len(students))
	for i, st := range students {
		entries := grades[st.ID]
		if entries == nil {
			entries = []gradebook.GradeEntry{}
		}
		out[i] = gradebook.StudentGrades{Student: st, Grades: entries}
	}
	return out, nil
}

func (s *Store) GetStudentGrades(ctx context.Context, tenantID, email string) (*gradebook.StudentGrades, error) {
	st, err := scanStudent(s.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE tenant_id = $1 AND email = $2`,
		tenantID, email))
	if err != nil {
		return nil, err
	}

	grades, err := s.gradeEntries(ctx, `g.student_id = $1`, st.ID)
	if err != nil {
		return nil, err
	}
	entries := grades[st.ID]
	if entries == nil {
		entries = []gradebook.GradeEntry{}
	}
	return &gradebook.StudentGrades{Student: *st, Grades: entries}, nil
}

// gradeEntries loads grade rows matching where, keyed by student.
func (s *Store) gradeEntries(ctx context.Context, where string, arg any) (map[uuid.UUID][]gradebook.GradeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT g.student_id, a.id, a.name, a.due_date, a.max_points, g.score
		 FROM grades g JOIN assignments a ON a.id = g.assignment_id
		 WHERE `+where+`
		 ORDER BY `+assignmentOrder, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]gradebook.GradeEntry)
	for rows.Next() {
		var (
			studentID uuid.UUID
			e         gradebook.GradeEntry
		)
		if err := rows.Scan(&studentID, &e.AssignmentID, &e.Assignment, &e.Date, &e.MaxPoints, &e.Score); err != nil {
			return nil, err
		}
		out[studentID] = append(out[studentID], e)
	}
	return out, rows.Err()
}

func (s *Store) ListAssignmentScores(ctx context.Context, tenantID string) ([]gradebook.AssignmentScores, error) {
	return s.assignmentScores(ctx, `a.tenant_id = $1`, tenantID)
}

func (s *Store) GetAssignmentScores(ctx context.Context, tenantID string, id uuid.UUID) (*gradebook.AssignmentScores, error) {
	list, err := s.assignmentScores(ctx, `a.tenant_id = $1 AND a.id = $2`, tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, gradebook.ErrNotFound
	}
	return &list[0], nil
}

func (s *Store) assignmentScores(ctx context.Context, where string, args ...any) ([]gradebook.AssignmentScores, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.tenant_id, a.name, a.due_date, a.max_points,
		        COALESCE(array_agg(g.score ORDER BY g.score) FILTER (WHERE g.id IS NOT NULL), '{}'),
		        COALESCE((SELECT array_agg(at.tag_id::text ORDER BY at.tag_id)
		                  FROM assignment_tags at WHERE at.assignment_id = a.id), '{}')
		 FROM assignments a LEFT JOIN grades g ON g.assignment_id = a.id
		 WHERE `+where+`
		 GROUP BY a.id
		 ORDER BY `+assignmentOrder, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []gradebook.AssignmentScores{}
	for rows.Next() {
		var (
			as     gradebook.AssignmentScores
			date   pgtype.Date
			tagIDs []string
		)
		a := &as.Assignment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &date, &a.MaxPoints, &as.Scores, &tagIDs); err != nil {
			return nil, err
		}
		a.Date = date
		a.TagIDs = make([]uuid.UUID, 0, len(tagIDs))
		for _, s := range tagIDs {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("tag id %q: %w", s, err)
			}
			a.TagIDs = append(a.TagIDs, id)
		}
		out = append(out, as)
	}
	return out, rows.Err()
}

func (s *Store) ListUploads(ctx context.Context, tenantID string, limit int) ([]gradebook.UploadRecord, error) {
	sql := `SELECT id, tenant_id, file_name, report, created_at FROM uploads
	        WHERE tenant_id = $1 ORDER BY created_at DESC`
	args := []any{tenantID}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []gradebook.UploadRecord{}
	for rows.Next() {
		var (
			u      gradebook.UploadRecord
			report []byte
		)
		if err := rows.Scan(&u.ID, &u.TenantID, &u.FileName, &report, &u.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(report, &u.Report); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", u.ID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
