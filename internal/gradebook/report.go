package gradebook

// StatusSuccess is the status of a committed upload.
const StatusSuccess = "success"

// UploadReport summarizes one reconciled upload. It is returned to the
// uploader and stored in the upload history.
type UploadReport struct {
	Status string `json:"status"`

	TotalStudents     int `json:"total_students"`
	ProcessedStudents int `json:"processed_students"`
	SkippedRows       int `json:"skipped_rows"`

	TotalAssignmentsFound int      `json:"total_assignments_found"`
	ValidAssignments      []string `json:"valid_assignments"`
	SkippedAssignments    []string `json:"skipped_assignments"`
	ProcessedAssignments  int      `json:"processed_assignments"` // len(ValidAssignments)
	Threshold             int      `json:"threshold_used"`

	StudentsCreated    int `json:"students_created"`
	StudentsUpdated    int `json:"students_updated"`
	AssignmentsCreated int `json:"assignments_created"`
	GradesCreated      int `json:"grades_created"`
	GradesUpdated      int `json:"grades_updated"`

	// ScoresAboveMax counts stored scores greater than the assignment's
	// max points (extra credit). ScoresRejected counts scores dropped for
	// exceeding the configured ceiling.
	ScoresAboveMax int `json:"scores_above_max"`
	ScoresRejected int `json:"scores_rejected"`
}

// Preview is the dry-run result of an upload: what would be imported,
// without touching the store.
type Preview struct {
	TotalStudents  int                 `json:"total_students"`
	ImportableRows int                 `json:"importable_rows"`
	SkippedRows    int                 `json:"skipped_rows"`
	Threshold      int                 `json:"threshold_used"`
	Assignments    []PreviewAssignment `json:"assignments"`
	Skipped        []PreviewSkipped    `json:"skipped_assignments"`
	Rejection      *RejectionDocument  `json:"rejection,omitempty"`
}

// PreviewAssignment is a column that would be imported.
type PreviewAssignment struct {
	Name      string  `json:"name"`
	Date      string  `json:"date,omitempty"`
	MaxPoints float64 `json:"max_points"`
	Scores    int     `json:"scores"`
}

// PreviewSkipped is a column that would be skipped and why.
type PreviewSkipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Scores int    `json:"scores"`
}
