package gradebook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

type stubLease struct{ released *int }

func (l stubLease) Release(context.Context) error {
	*l.released++
	return nil
}

type stubLocker struct {
	busy     bool
	err      error
	keys     []string
	released int
}

func (l *stubLocker) Acquire(_ context.Context, key string) (gradebook.Lease, bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, false, l.err
	}
	if l.busy {
		return nil, false, nil
	}
	return stubLease{released: &l.released}, true, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	recs []gradebook.UploadRecord
	err  error
}

func (p *recordingPublisher) UploadCompleted(_ context.Context, rec gradebook.UploadRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return p.err
}

func TestImportLocksTenant(t *testing.T) {
	locker := &stubLocker{}
	imp := gradebook.NewImporter(newStore(t), gradebook.DefaultOptions(), locker, nil)

	upload(t, imp, scenario().bytes())

	if len(locker.keys) != 1 || locker.keys[0] != "upload:"+tenantID {
		t.Errorf("lock keys = %v", locker.keys)
	}
	if locker.released != 1 {
		t.Errorf("released = %d, want 1", locker.released)
	}
}

func TestImportBusyTenant(t *testing.T) {
	s := newStore(t)
	imp := gradebook.NewImporter(s, gradebook.DefaultOptions(), &stubLocker{busy: true}, nil)

	_, err := imp.Import(context.Background(), gradebook.ImportRequest{TenantID: tenantID, Data: scenario().bytes()})
	if !errors.Is(err, gradebook.ErrUploadInProgress) {
		t.Fatalf("Import() error = %v, want ErrUploadInProgress", err)
	}
	if students, _, _ := s.Counts(tenantID); students != 0 {
		t.Errorf("busy tenant wrote %d students", students)
	}
}

func TestImportLockFailure(t *testing.T) {
	lockErr := errors.New("dial tcp: connection refused")
	imp := gradebook.NewImporter(newStore(t), gradebook.DefaultOptions(), &stubLocker{err: lockErr}, nil)

	_, err := imp.Import(context.Background(), gradebook.ImportRequest{TenantID: tenantID, Data: scenario().bytes()})
	if !errors.Is(err, lockErr) {
		t.Fatalf("Import() error = %v, want lock error", err)
	}
	if errors.Is(err, gradebook.ErrUploadInProgress) {
		t.Error("a broken lock backend is not a busy tenant")
	}
}

func TestImportPublishesAndRecords(t *testing.T) {
	s := newStore(t)
	pub := &recordingPublisher{}
	imp := gradebook.NewImporter(s, gradebook.DefaultOptions(), nil, pub)

	report, err := imp.Import(context.Background(), gradebook.ImportRequest{
		TenantID: tenantID,
		FileName: "period3.csv",
		Data:     scenario().bytes(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(pub.recs) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.recs))
	}
	rec := pub.recs[0]
	if rec.FileName != "period3.csv" || rec.TenantID != tenantID || rec.Report.GradesCreated != report.GradesCreated {
		t.Errorf("event = %+v", rec)
	}

	history, err := s.ListUploads(context.Background(), tenantID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != rec.ID {
		t.Errorf("history = %+v", history)
	}
}

func TestImportPublishFailureDoesNotFailUpload(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	imp := gradebook.NewImporter(newStore(t), gradebook.DefaultOptions(), nil, pub)

	if _, err := imp.Import(context.Background(), gradebook.ImportRequest{TenantID: tenantID, Data: scenario().bytes()}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
}

func TestImportCancelledContext(t *testing.T) {
	s := newStore(t)
	imp := gradebook.NewImporter(s, gradebook.DefaultOptions(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := imp.Import(ctx, gradebook.ImportRequest{TenantID: tenantID, Data: scenario().bytes()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Import() error = %v, want context.Canceled", err)
	}
}

func TestPreview(t *testing.T) {
	s := newStore(t)
	imp := gradebook.NewImporter(s, gradebook.DefaultOptions(), nil, nil)

	p, err := imp.Preview(scenario().bytes())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if p.TotalStudents != 10 || p.ImportableRows != 10 || p.Threshold != 1 {
		t.Errorf("preview = %+v", p)
	}
	if len(p.Assignments) != 1 || p.Assignments[0].Date != "2024-01-10" || p.Assignments[0].Scores != 2 {
		t.Errorf("Assignments = %+v", p.Assignments)
	}
	if len(p.Skipped) != 1 || p.Skipped[0].Reason != gradebook.SkipMissingPoints {
		t.Errorf("Skipped = %+v", p.Skipped)
	}
	if p.Rejection != nil {
		t.Errorf("Rejection = %+v, want nil", p.Rejection)
	}
	if students, _, _ := s.Counts(tenantID); students != 0 {
		t.Error("preview must not write")
	}
}

func TestPreviewRejection(t *testing.T) {
	imp := gradebook.NewImporter(newStore(t), gradebook.DefaultOptions(), nil, nil)
	f := fixture{
		header: []string{"Last", "First", "Email", "Quiz"},
		dates:  []string{"", "", "", ""},
		points: []string{"", "", "", ""},
		rows:   [][]string{student("A", "A", "nan", "5")},
	}

	p, err := imp.Preview(f.bytes())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if p.Rejection == nil || p.Rejection.Threshold != 1 {
		t.Errorf("Rejection = %+v", p.Rejection)
	}
	if p.SkippedRows != 1 || p.ImportableRows != 0 {
		t.Errorf("rows importable=%d skipped=%d", p.ImportableRows, p.SkippedRows)
	}
}

func TestImportCustomLayout(t *testing.T) {
	opts := gradebook.DefaultOptions()
	opts.Layout = gradebook.LayoutConfig{DateRow: -1, PointsRow: 1, FirstStudentRow: 2}
	opts.DensityRatio = 0.5
	imp := gradebook.NewImporter(newStore(t), opts, nil, nil)

	data := []byte("Last,First,Email,Quiz,Lab\n" +
		",,,10,10\n" +
		"A,A,a@example.com,5,\n" +
		"B,B,b@example.com,6,\n" +
		"C,C,c@example.com,,7\n")

	report := upload(t, imp, data)
	if report.Threshold != 1 {
		t.Errorf("Threshold = %d, want 1", report.Threshold)
	}
	if len(report.ValidAssignments) != 2 {
		t.Errorf("ValidAssignments = %v", report.ValidAssignments)
	}
	if report.GradesCreated != 3 {
		t.Errorf("GradesCreated = %d, want 3", report.GradesCreated)
	}
}
