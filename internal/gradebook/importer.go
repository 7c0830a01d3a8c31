package gradebook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/logging"
)

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker serializes uploads per tenant. Acquire returns ok=false when the
// key is held by someone else.
type Locker interface {
	Acquire(ctx context.Context, key string) (lease Lease, ok bool, err error)
}

// Publisher is notified after an upload commits.
type Publisher interface {
	UploadCompleted(ctx context.Context, rec UploadRecord) error
}

// Options tune how uploads are interpreted.
type Options struct {
	Layout       LayoutConfig
	DensityRatio float64
	Placeholders []string
	ScoreCeiling float64 // absolute score limit; 0 disables the ceiling
}

// DefaultOptions returns the standard layout and thresholds.
func DefaultOptions() Options {
	return Options{
		Layout:       DefaultLayout,
		DensityRatio: DefaultDensityRatio,
		Placeholders: DefaultMissingPlaceholders,
	}
}

// ImportRequest is one uploaded file.
type ImportRequest struct {
	TenantID string
	FileName string
	Data     []byte
	TagIDs   []uuid.UUID // existing tags to attach
	NewTags  []string    // tag names to find or create, then attach
}

// Importer runs the full upload pipeline against a Store.
type Importer struct {
	store      Store
	opts       Options
	reconciler *Reconciler
	locker     Locker    // optional
	publisher  Publisher // optional
	now        func() time.Time
}

// NewImporter creates an Importer. locker and publisher may be nil.
func NewImporter(store Store, opts Options, locker Locker, publisher Publisher) *Importer {
	if opts.DensityRatio <= 0 {
		opts.DensityRatio = DefaultDensityRatio
	}
	if opts.Layout == (LayoutConfig{}) {
		opts.Layout = DefaultLayout
	}
	if opts.Placeholders == nil {
		opts.Placeholders = DefaultMissingPlaceholders
	}
	return &Importer{
		store: store,
		opts:  opts,
		reconciler: &Reconciler{
			Placeholders: opts.Placeholders,
			ScoreCeiling: opts.ScoreCeiling,
		},
		locker:    locker,
		publisher: publisher,
		now:       time.Now,
	}
}

// analysis is the result of the pure stages.
type analysis struct {
	layout     *Layout
	validation *Validation
	plan       []PlannedAssignment
}

func (i *Importer) analyze(data []byte) (*analysis, error) {
	g, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l, err := Classify(g, i.opts.Layout)
	if err != nil {
		return nil, err
	}
	v := Validate(l, i.opts.DensityRatio)
	return &analysis{layout: l, validation: v, plan: Plan(l, v)}, nil
}

// Preview runs the pure stages and describes what Import would do. A file
// with no valid assignment is not an error here; the rejection is part of
// the returned Preview.
func (i *Importer) Preview(data []byte) (*Preview, error) {
	a, err := i.analyze(data)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		TotalStudents: len(a.layout.Students),
		Threshold:     a.validation.Threshold,
		Assignments:   []PreviewAssignment{},
		Skipped:       []PreviewSkipped{},
	}
	for _, s := range a.layout.Students {
		if IsMissing(a.layout.Email(s), i.opts.Placeholders) {
			p.SkippedRows++
		} else {
			p.ImportableRows++
		}
	}
	for n, pa := range a.plan {
		p.Assignments = append(p.Assignments, PreviewAssignment{
			Name:      pa.Name,
			Date:      FormatDate(pa.Date),
			MaxPoints: pa.MaxPoints,
			Scores:    a.validation.Valid[n].Scores,
		})
	}
	for _, s := range a.validation.Skipped {
		p.Skipped = append(p.Skipped, PreviewSkipped{Name: s.Column.Name, Reason: s.Reason, Scores: s.Scores})
	}
	if err := a.validation.Err(a.layout.AssignmentNames()); err != nil {
		doc := err.(*RejectionError).Document()
		p.Rejection = &doc
	}
	return p, nil
}

// Import parses, validates and reconciles one upload in a single
// transaction. Input errors are returned before any store interaction. A
// store failure rolls back every change of the upload.
func (i *Importer) Import(ctx context.Context, req ImportRequest) (*UploadReport, error) {
	start := i.now()
	ctx, logger := logging.WithUpload(ctx, req.TenantID, req.FileName)

	a, err := i.analyze(req.Data)
	if err != nil {
		return nil, err
	}
	if err := a.validation.Err(a.layout.AssignmentNames()); err != nil {
		logger.Info("upload rejected",
			"students", a.validation.TotalStudents,
			"threshold", a.validation.Threshold,
			"skipped", len(a.validation.Skipped))
		return nil, err
	}

	if _, err := i.store.GetTenant(ctx, req.TenantID); err != nil {
		return nil, fmt.Errorf("tenant %s: %w", req.TenantID, err)
	}

	if i.locker != nil {
		lease, ok, err := i.locker.Acquire(ctx, "upload:"+req.TenantID)
		if err != nil {
			return nil, fmt.Errorf("acquire upload lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: tenant %s", ErrUploadInProgress, req.TenantID)
		}
		defer func() {
			// The request context may already be done; release regardless.
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release upload lock", "error", err)
			}
		}()
	}

	rec, err := i.commit(ctx, req, a)
	if err != nil {
		logger.Error("upload failed", "error", err)
		return nil, err
	}

	logger.Info("upload completed",
		"upload_id", rec.ID,
		"processed_students", rec.Report.ProcessedStudents,
		"assignments_created", rec.Report.AssignmentsCreated,
		"grades_created", rec.Report.GradesCreated,
		"grades_updated", rec.Report.GradesUpdated,
		"duration_ms", time.Since(start).Milliseconds())

	if i.publisher != nil {
		if err := i.publisher.UploadCompleted(ctx, *rec); err != nil {
			logger.Warn("publish upload event", "upload_id", rec.ID, "error", err)
		}
	}

	return &rec.Report, nil
}

func (i *Importer) commit(ctx context.Context, req ImportRequest, a *analysis) (*UploadRecord, error) {
	tx, err := i.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tagIDs := append([]uuid.UUID(nil), req.TagIDs...)
	if len(req.NewTags) > 0 {
		created, err := resolveTagNames(ctx, tx, req.TenantID, req.NewTags)
		if err != nil {
			return nil, err
		}
		tagIDs = append(tagIDs, created...)
	}

	report, err := i.reconciler.Reconcile(ctx, tx, ReconcileInput{
		TenantID:   req.TenantID,
		Layout:     a.layout,
		Validation: a.validation,
		Plan:       a.plan,
		TagIDs:     tagIDs,
	})
	if err != nil {
		return nil, err
	}

	rec := &UploadRecord{
		TenantID:  req.TenantID,
		FileName:  req.FileName,
		Report:    *report,
		CreatedAt: i.now().UTC(),
	}
	if err := tx.SaveUpload(ctx, rec); err != nil {
		return nil, fmt.Errorf("save upload record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}
