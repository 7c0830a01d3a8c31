package gradebook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Tenant scopes every other entity. Tenants are provisioned outside the
// upload flow and never changed by it.
type Tenant struct {
	ID   string // Slug, e.g. "lincoln_high"
	Name string // Display name
}

// Student is identified within a tenant by its normalized email.
type Student struct {
	ID            uuid.UUID
	TenantID      string
	Email         string
	FirstName     string
	LastName      string
	StudentNumber pgtype.Text // Legacy identifier, never set by uploads
}

// Assignment is identified within a tenant by (Name, Date). An invalid Date
// means "no date" and forms its own identity bucket per name.
type Assignment struct {
	ID        uuid.UUID
	TenantID  string
	Name      string
	Date      pgtype.Date
	MaxPoints float64
	TagIDs    []uuid.UUID
}

// Grade is the score of one student on one assignment.
type Grade struct {
	ID           uuid.UUID
	StudentID    uuid.UUID
	AssignmentID uuid.UUID
	Score        float64
}

// Tag labels assignments. Names are unique per tenant, case-insensitively.
type Tag struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
}

// UploadRecord is the history entry written with every committed upload.
type UploadRecord struct {
	ID        uuid.UUID    `json:"id"`
	TenantID  string       `json:"tenant_id"`
	FileName  string       `json:"file_name"`
	Report    UploadReport `json:"report"`
	CreatedAt time.Time    `json:"created_at"`
}

// Tx is the write side of the store, scoped to one transaction.
//
// Find methods return ErrNotFound when nothing matches. Save methods insert
// when the entity ID is uuid.Nil (assigning a fresh ID to the entity) and
// update otherwise.
type Tx interface {
	FindStudent(ctx context.Context, tenantID, email string) (*Student, error)
	SaveStudent(ctx context.Context, s *Student) error

	FindAssignment(ctx context.Context, tenantID, name string, date pgtype.Date) (*Assignment, error)
	SaveAssignment(ctx context.Context, a *Assignment) error

	FindGrade(ctx context.Context, studentID, assignmentID uuid.UUID) (*Grade, error)
	SaveGrade(ctx context.Context, g *Grade) error

	FindTags(ctx context.Context, tenantID string, ids []uuid.UUID) ([]Tag, error)
	FindTagByName(ctx context.Context, tenantID, name string) (*Tag, error)
	SaveTag(ctx context.Context, t *Tag) error

	SaveUpload(ctx context.Context, u *UploadRecord) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// GradeEntry is one graded assignment as seen from a student.
type GradeEntry struct {
	AssignmentID uuid.UUID
	Assignment   string
	Date         pgtype.Date
	MaxPoints    float64
	Score        float64
}

// StudentGrades is a student with all of their grades.
type StudentGrades struct {
	Student Student
	Grades  []GradeEntry
}

// AssignmentScores is an assignment with every score recorded for it.
type AssignmentScores struct {
	Assignment Assignment
	Scores     []float64
}

// Queries is the read side of the store.
type Queries interface {
	GetTenant(ctx context.Context, id string) (*Tenant, error)

	// ListStudentGrades returns the tenant's students ordered by last name,
	// first name and email. A non-empty search restricts the result to
	// students matching it (see MatchesStudent).
	ListStudentGrades(ctx context.Context, tenantID, search string) ([]StudentGrades, error)
	GetStudentGrades(ctx context.Context, tenantID, email string) (*StudentGrades, error)

	// ListAssignmentScores returns assignments ordered by date (undated
	// last) and then name.
	ListAssignmentScores(ctx context.Context, tenantID string) ([]AssignmentScores, error)
	GetAssignmentScores(ctx context.Context, tenantID string, id uuid.UUID) (*AssignmentScores, error)

	// ListUploads returns the newest uploads first.
	ListUploads(ctx context.Context, tenantID string, limit int) ([]UploadRecord, error)
}

// TagStore manages tags outside of uploads.
type TagStore interface {
	ListTags(ctx context.Context, tenantID string) ([]Tag, error)
	CreateTag(ctx context.Context, t *Tag) error
	UpdateTag(ctx context.Context, t *Tag) error
	DeleteTag(ctx context.Context, tenantID string, id uuid.UUID) error
}

// Store is the persistence engine consumed by this package.
type Store interface {
	Queries
	TagStore

	// Begin starts a transaction. Callers must end it with Commit or
	// Rollback; Rollback after Commit is a no-op.
	Begin(ctx context.Context) (Tx, error)

	// EnsureTenant creates the tenant if it does not exist yet.
	EnsureTenant(ctx context.Context, t Tenant) error
}
