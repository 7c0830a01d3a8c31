package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// Tx is a gradebook.Tx on a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx))
}

// Rollback aborts the transaction. pgx makes it a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	return mapError(t.tx.Rollback(ctx))
}

// ----------------------------------------------------------------------------
// Students
// ----------------------------------------------------------------------------

const studentColumns = `id, tenant_id, email, first_name, last_name, student_number`

func scanStudent(row pgx.Row) (*gradebook.Student, error) {
	var s gradebook.Student
	if err := row.Scan(&s.ID, &s.TenantID, &s.Email, &s.FirstName, &s.LastName, &s.StudentNumber); err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (t *Tx) FindStudent(ctx context.Context, tenantID, email string) (*gradebook.Student, error) {
	return scanStudent(t.tx.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE tenant_id = $1 AND email = $2`,
		tenantID, email))
}

func (t *Tx) SaveStudent(ctx context.Context, s *gradebook.Student) error {
	if s.ID == uuid.Nil {
		id := uuid.New()
		_, err := t.tx.Exec(ctx,
			`INSERT INTO students (`+studentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, s.TenantID, s.Email, s.FirstName, s.LastName, s.StudentNumber)
		if err != nil {
			return mapError(err)
		}
		s.ID = id
		return nil
	}
	return execOne(ctx, t.tx,
		`UPDATE students SET email = $2, first_name = $3, last_name = $4, student_number = $5 WHERE id = $1`,
		s.ID, s.Email, s.FirstName, s.LastName, s.StudentNumber)
}

// ----------------------------------------------------------------------------
// Assignments
// ----------------------------------------------------------------------------

const assignmentColumns = `id, tenant_id, name, due_date, max_points`

func (t *Tx) FindAssignment(ctx context.Context, tenantID, name string, date pgtype.Date) (*gradebook.Assignment, error) {
	var a gradebook.Assignment
	err := t.tx.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE tenant_id = $1 AND name = $2 AND due_date IS NOT DISTINCT FROM $3`,
		tenantID, name, date).Scan(&a.ID, &a.TenantID, &a.Name, &a.Date, &a.MaxPoints)
	if err != nil {
		return nil, mapError(err)
	}

	a.TagIDs, err = assignmentTags(ctx, t.tx, a.ID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func assignmentTags(ctx context.Context, db DBTX, assignmentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx,
		`SELECT tag_id FROM assignment_tags WHERE assignment_id = $1 ORDER BY tag_id`, assignmentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *Tx) SaveAssignment(ctx context.Context, a *gradebook.Assignment) error {
	if a.ID == uuid.Nil {
		id := uuid.New()
		_, err := t.tx.Exec(ctx,
			`INSERT INTO assignments (`+assignmentColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			id, a.TenantID, a.Name, a.Date, a.MaxPoints)
		if err != nil {
			return mapError(err)
		}
		a.ID = id
	} else {
		err := execOne(ctx, t.tx,
			`UPDATE assignments SET name = $2, due_date = $3, max_points = $4 WHERE id = $1`,
			a.ID, a.Name, a.Date, a.MaxPoints)
		if err != nil {
			return err
		}
	}
	return syncAssignmentTags(ctx, t.tx, a.ID, a.TagIDs)
}

// syncAssignmentTags makes the assignment's tag links equal to ids.
func syncAssignmentTags(ctx context.Context, db DBTX, assignmentID uuid.UUID, ids []uuid.UUID) error {
	strs := uuidStrings(ids)
	if _, err := db.Exec(ctx,
		`DELETE FROM assignment_tags WHERE assignment_id = $1 AND NOT (tag_id = ANY($2::uuid[]))`,
		assignmentID, strs); err != nil {
		return mapError(err)
	}
	if len(strs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx,
		`INSERT INTO assignment_tags (assignment_id, tag_id)
		 SELECT $1, unnest($2::uuid[])
		 ON CONFLICT DO NOTHING`,
		assignmentID, strs)
	return mapError(err)
}

// ----------------------------------------------------------------------------
// Grades
// ----------------------------------------------------------------------------

func (t *Tx) FindGrade(ctx context.Context, studentID, assignmentID uuid.UUID) (*gradebook.Grade, error) {
	var g gradebook.Grade
	err := t.tx.QueryRow(ctx,
		`SELECT id, student_id, assignment_id, score FROM grades WHERE student_id = $1 AND assignment_id = $2`,
		studentID, assignmentID).Scan(&g.ID, &g.StudentID, &g.AssignmentID, &g.Score)
	if err != nil {
		return nil, mapError(err)
	}
	return &g, nil
}

func (t *Tx) SaveGrade(ctx context.Context, g *gradebook.Grade) error {
	if g.ID == uuid.Nil {
		id := uuid.New()
		_, err := t.tx.Exec(ctx,
			`INSERT INTO grades (id, student_id, assignment_id, score) VALUES ($1, $2, $3, $4)`,
			id, g.StudentID, g.AssignmentID, g.Score)
		if err != nil {
			return mapError(err)
		}
		g.ID = id
		return nil
	}
	return execOne(ctx, t.tx, `UPDATE grades SET score = $2 WHERE id = $1`, g.ID, g.Score)
}

// ----------------------------------------------------------------------------
// Tags and uploads
// ----------------------------------------------------------------------------

func (t *Tx) FindTags(ctx context.Context, tenantID string, ids []uuid.UUID) ([]gradebook.Tag, error) {
	return queryTags(ctx, t.tx,
		`SELECT `+tagColumns+` FROM tags WHERE tenant_id = $1 AND id = ANY($2::uuid[]) ORDER BY lower(name)`,
		tenantID, uuidStrings(ids))
}

func (t *Tx) FindTagByName(ctx context.Context, tenantID, name string) (*gradebook.Tag, error) {
	return scanTag(t.tx.QueryRow(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE tenant_id = $1 AND lower(name) = lower($2)`,
		tenantID, name))
}

func (t *Tx) SaveTag(ctx context.Context, tag *gradebook.Tag) error {
	return saveTag(ctx, t.tx, tag)
}

func (t *Tx) SaveUpload(ctx context.Context, u *gradebook.UploadRecord) error {
	report, err := json.Marshal(u.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO uploads (id, tenant_id, file_name, report, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, u.TenantID, u.FileName, report, u.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	u.ID = id
	return nil
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// execOne runs an UPDATE or DELETE that must touch exactly one row.
func execOne(ctx context.Context, db DBTX, sql string, args ...any) error {
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return gradebook.ErrNotFound
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
