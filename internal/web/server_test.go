package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/gradebook"
	"github.com/JonMunkholm/gradebook/internal/lock"
	"github.com/JonMunkholm/gradebook/internal/store/memory"
)

const tenant = "lincoln_high"

const gradebookCSV = `Last Name,First Name,Email,Quiz 1,Essay
,,,2024-01-10,2024-01-17
,,,10,20
Lovelace,Ada,ada@example.com,9,18
Hopper,Grace,grace@example.com,10,
Turing,Alan,alan@example.com,7,15
`

const rejectedCSV = `Last Name,First Name,Email,Quiz 1
,,,2024-01-10
,,,
Lovelace,Ada,ada@example.com,9
`

type testEnv struct {
	srv    *Server
	store  *memory.Store
	locker *lock.LocalLocker
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, Timeout: time.Minute},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	store := memory.New()
	if err := store.EnsureTenant(context.Background(), gradebook.Tenant{ID: tenant, Name: "Lincoln High"}); err != nil {
		t.Fatal(err)
	}
	locker := lock.NewLocalLocker(2, 20*time.Millisecond)
	srv := NewServer(cfg, Deps{
		Importer: gradebook.NewImporter(store, gradebook.DefaultOptions(), locker, nil),
		Reports:  gradebook.NewReports(store),
		Tags:     gradebook.NewTagService(store),
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, locker: locker}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	e.srv.health = func(context.Context) error { return errors.New("db down") }
	rec = e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", gradebookCSV, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	report := decode[gradebook.UploadReport](t, rec)
	if report.Status != gradebook.StatusSuccess || report.ProcessedStudents != 3 || report.GradesCreated != 5 {
		t.Errorf("report = %+v", report)
	}
	raw := decode[map[string]any](t, rec)
	if n, ok := raw["processed_assignments"].(float64); !ok || n != 2 {
		t.Errorf("processed_assignments = %v, want the number 2", raw["processed_assignments"])
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenant+"/uploads", nil))
	uploads := decode[[]gradebook.UploadRecord](t, rec)
	if len(uploads) != 1 || uploads[0].FileName != "grades.csv" {
		t.Errorf("uploads = %+v", uploads)
	}
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		tenant   string
		file     string
		content  string
		fields   map[string]string
		wantCode int
		wantBody string
	}{
		{"missing file", tenant, "", "", nil, http.StatusBadRequest, "FILE004"},
		{"empty file", tenant, "grades.csv", "   ", nil, http.StatusBadRequest, "FILE003"},
		{"missing identity columns", tenant, "grades.csv", "Name,Score\n,\n,10\nAda,9\n", nil, http.StatusBadRequest, "LAY002"},
		{"unknown tenant", "nobody", "grades.csv", gradebookCSV, nil, http.StatusNotFound, "DB002"},
		{"malformed tags", tenant, "grades.csv", gradebookCSV, map[string]string{"tags": "not-json"}, http.StatusBadRequest, "VAL002"},
		{"unknown tag", tenant, "grades.csv", gradebookCSV, map[string]string{"tags": `["0b0d5b56-9a59-4c1e-a4c4-1a5e3d7e8f90"]`}, http.StatusBadRequest, "VAL002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			rec := e.do(uploadRequest(t, "/api/tenants/"+tt.tenant+"/uploads", tt.file, tt.content, tt.fields))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestUploadFormErrors(t *testing.T) {
	tests := []struct {
		name        string
		maxSize     int64
		contentType string
		body        string
		wantBody    string
	}{
		{"json body is not a form", 1 << 20, "application/json", `{"file":"grades.csv"}`, "VAL002"},
		{"missing boundary", 1 << 20, "multipart/form-data", "--x\r\n", "VAL002"},
		{"body over the size limit", 16, "multipart/form-data; boundary=x", strings.Repeat("a", 64), "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Upload.MaxFileSize = tt.maxSize
			e := newTestEnv(t, cfg)

			req := httptest.NewRequest(http.MethodPost, "/api/tenants/"+tenant+"/uploads", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := e.do(req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestUploadRejection(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", rejectedCSV, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	doc := decode[map[string]any](t, rec)
	if doc["error"] != "No assignments have sufficient data" {
		t.Errorf("error = %v", doc["error"])
	}
	for _, key := range []string{"total_students", "threshold", "all_assignments", "skipped_assignments"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("rejection document missing %q: %v", key, doc)
		}
	}
}

func TestUploadBusyTenant(t *testing.T) {
	e := newTestEnv(t, nil)
	lease, ok, err := e.locker.Acquire(context.Background(), "upload:"+tenant)
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	defer lease.Release(context.Background())

	rec := e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", gradebookCSV, nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 (body %s)", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "UPL001") {
		t.Errorf("body = %s, want UPL001", rec.Body)
	}
}

func TestUploadHTMX(t *testing.T) {
	e := newTestEnv(t, nil)

	req := uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", gradebookCSV, nil)
	req.Header.Set("HX-Request", "true")
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Upload complete") {
		t.Errorf("body = %s", rec.Body)
	}

	req = uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", rejectedCSV, nil)
	req.Header.Set("HX-Request", "true")
	rec = e.do(req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "No assignments have sufficient data") {
		t.Errorf("rejection fragment = %d %s", rec.Code, rec.Body)
	}
}

func TestUploadWithNewTags(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", gradebookCSV,
		map[string]string{"new_tags": "Unit 1, unit 1 ,Midterm"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	tags := decode[[]gradebook.Tag](t, e.do(httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenant+"/tags", nil)))
	if len(tags) != 2 {
		t.Fatalf("tags = %+v, want 2", tags)
	}

	assignments := decode[[]gradebook.AssignmentSummary](t, e.do(httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenant+"/assignments", nil)))
	for _, a := range assignments {
		if len(a.TagIDs) != 2 {
			t.Errorf("assignment %s tags = %v, want 2", a.Name, a.TagIDs)
		}
	}
}

func TestPreview(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads/preview", "grades.csv", gradebookCSV, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	p := decode[gradebook.Preview](t, rec)
	if p.TotalStudents != 3 || len(p.Assignments) != 2 || p.Rejection != nil {
		t.Errorf("preview = %+v", p)
	}
	if students, _, _ := e.store.Counts(tenant); students != 0 {
		t.Errorf("preview wrote %d students", students)
	}

	rec = e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads/preview", "grades.csv", rejectedCSV, nil))
	p = decode[gradebook.Preview](t, rec)
	if rec.Code != http.StatusOK || p.Rejection == nil {
		t.Errorf("rejected preview = %d %+v", rec.Code, p)
	}
}

func TestReports(t *testing.T) {
	e := newTestEnv(t, nil)
	if rec := e.do(uploadRequest(t, "/api/tenants/"+tenant+"/uploads", "grades.csv", gradebookCSV, nil)); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}
	base := "/api/tenants/" + tenant

	students := decode[[]gradebook.StudentSummary](t, e.do(httptest.NewRequest(http.MethodGet, base+"/students", nil)))
	if len(students) != 3 || students[0].LastName != "Hopper" {
		t.Errorf("students = %+v", students)
	}

	found := decode[[]gradebook.StudentSummary](t, e.do(httptest.NewRequest(http.MethodGet, base+"/students?q=lovelace,+ada", nil)))
	if len(found) != 1 || found[0].Email != "ada@example.com" {
		t.Errorf("search = %+v", found)
	}

	ada := decode[gradebook.StudentSummary](t, e.do(httptest.NewRequest(http.MethodGet, base+"/students/ada@example.com", nil)))
	if ada.TotalPoints != 27 || ada.MaxPossible != 30 || ada.AveragePercentage != 90 {
		t.Errorf("ada = %+v", ada)
	}

	if rec := e.do(httptest.NewRequest(http.MethodGet, base+"/students/nobody@example.com", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown student status = %d, want 404", rec.Code)
	}

	assignments := decode[[]gradebook.AssignmentSummary](t, e.do(httptest.NewRequest(http.MethodGet, base+"/assignments", nil)))
	if len(assignments) != 2 || assignments[0].Name != "Quiz 1" || assignments[0].StudentCount != 3 {
		t.Fatalf("assignments = %+v", assignments)
	}

	stats := decode[gradebook.AssignmentStats](t, e.do(httptest.NewRequest(http.MethodGet,
		base+"/assignments/"+assignments[1].ID.String()+"/stats", nil)))
	if stats.MinScore != 15 || stats.MaxScore != 18 || stats.StudentCount != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if rec := e.do(httptest.NewRequest(http.MethodGet, base+"/assignments/not-a-uuid/stats", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("bad id status = %d, want 404", rec.Code)
	}
}

func TestTagCRUD(t *testing.T) {
	e := newTestEnv(t, nil)
	base := "/api/tenants/" + tenant + "/tags"

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, base, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return e.do(req)
	}

	rec := post(`{"name":"Unit 1","color":"#ff0000"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	tag := decode[gradebook.Tag](t, rec)

	if rec := post(`{"name":"unit 1"}`); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	rec = post(`{"name":"","color":"red"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status = %d, want 400", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Fields["name"] == "" || resp.Fields["color"] == "" {
		t.Errorf("fields = %v, want name and color", resp.Fields)
	}

	if rec := post(`{"name":"x","bogus":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, base+"/"+tag.ID.String(), strings.NewReader(`{"name":"Unit One","description":"Fractions"}`))
	rec = e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[gradebook.Tag](t, rec); got.Name != "Unit One" || got.Color != gradebook.DefaultTagColor {
		t.Errorf("updated = %+v", got)
	}

	if rec := e.do(httptest.NewRequest(http.MethodDelete, base+"/"+tag.ID.String(), nil)); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := e.do(httptest.NewRequest(http.MethodDelete, base+"/"+tag.ID.String(), nil)); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestDownloadTemplate(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		query    string
		wantCode int
		wantType string
	}{
		{"", http.StatusOK, "text/csv"},
		{"?format=csv", http.StatusOK, "text/csv"},
		{"?format=xlsx", http.StatusOK, "application/vnd.openxmlformats"},
		{"?format=pdf", http.StatusBadRequest, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := e.do(httptest.NewRequest(http.MethodGet, "/api/template"+tt.query, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %s", ct, tt.wantType)
			}
		})
	}
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	e := newTestEnv(t, cfg)

	path := "/api/tenants/" + tenant + "/uploads/preview"
	if rec := e.do(uploadRequest(t, path, "grades.csv", gradebookCSV, nil)); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := e.do(uploadRequest(t, path, "grades.csv", gradebookCSV, nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// Reads are under the general limit.
	if rec := e.do(httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenant+"/students", nil)); rec.Code != http.StatusOK {
		t.Errorf("read status = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gradebook.ErrEmptyFile, http.StatusBadRequest},
		{&gradebook.RejectionError{}, http.StatusBadRequest},
		{gradebook.ErrUploadInProgress, http.StatusConflict},
		{gradebook.ErrConflict, http.StatusConflict},
		{lock.ErrTooManyUploads, http.StatusServiceUnavailable},
		{gradebook.ErrNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
