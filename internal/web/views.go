package web

// views.go renders HTML fragments for HTMX clients. Plain API clients get
// the same data as JSON.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

func renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render fragment", "error", err)
	}
}

// writer accumulates the first write error so fragments can be written
// without checking every line.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func list(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	escaped := make([]string, len(items))
	for i, s := range items {
		escaped[i] = esc(s)
	}
	return strings.Join(escaped, ", ")
}

// errorAlert is the generic error fragment.
func errorAlert(msg gradebook.UserMessage) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.printf(`<div class="alert alert-error" role="alert">`)
		w.printf(`<p class="alert-message">%s</p>`, esc(msg.Message))
		if msg.Action != "" {
			w.printf(`<p class="alert-action">%s</p>`, esc(msg.Action))
		}
		w.printf(`<p class="alert-code">Code: %s</p></div>`, esc(msg.Code))
		return w.err
	})
}

// rejectionView explains why no assignment could be imported.
func rejectionView(doc gradebook.RejectionDocument) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.printf(`<div class="alert alert-error" role="alert">`)
		w.printf(`<p class="alert-message">%s</p>`, esc(doc.Error))
		w.printf(`<p>%d students; each assignment needs at least %d scores.</p>`, doc.TotalStudents, doc.Threshold)
		w.printf(`<p>Found: %s</p>`, list(doc.AllAssignments))
		w.printf(`<p>Skipped: %s</p></div>`, list(doc.SkippedAssignments))
		return w.err
	})
}

// uploadResultView summarizes a committed upload.
func uploadResultView(rep *gradebook.UploadReport) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.printf(`<div class="upload-result upload-%s">`, esc(rep.Status))
		w.printf(`<h3>Upload complete</h3><dl>`)
		w.printf(`<dt>Students</dt><dd>%d of %d processed (%d created, %d updated, %d rows skipped)</dd>`,
			rep.ProcessedStudents, rep.TotalStudents, rep.StudentsCreated, rep.StudentsUpdated, rep.SkippedRows)
		w.printf(`<dt>Assignments</dt><dd>%d of %d imported (%d new); threshold %d</dd>`,
			rep.ProcessedAssignments, rep.TotalAssignmentsFound, rep.AssignmentsCreated, rep.Threshold)
		w.printf(`<dt>Grades</dt><dd>%d created, %d updated</dd>`, rep.GradesCreated, rep.GradesUpdated)
		if rep.ScoresAboveMax > 0 || rep.ScoresRejected > 0 {
			w.printf(`<dt>Scores</dt><dd>%d above max points, %d rejected</dd>`, rep.ScoresAboveMax, rep.ScoresRejected)
		}
		w.printf(`</dl>`)
		if len(rep.SkippedAssignments) > 0 {
			w.printf(`<p class="skipped">Skipped: %s</p>`, list(rep.SkippedAssignments))
		}
		w.printf(`</div>`)
		return w.err
	})
}

// previewView lists what an upload would import.
func previewView(p *gradebook.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		if p.Rejection != nil {
			return rejectionView(*p.Rejection).Render(ctx, out)
		}
		w := &writer{w: out}
		w.printf(`<div class="upload-preview">`)
		w.printf(`<p>%d students (%d importable, %d without email); threshold %d</p>`,
			p.TotalStudents, p.ImportableRows, p.SkippedRows, p.Threshold)
		w.printf(`<table><thead><tr><th>Assignment</th><th>Date</th><th>Max points</th><th>Scores</th></tr></thead><tbody>`)
		for _, a := range p.Assignments {
			date := a.Date
			if date == "" {
				date = "-"
			}
			w.printf(`<tr><td>%s</td><td>%s</td><td>%g</td><td>%d</td></tr>`, esc(a.Name), esc(date), a.MaxPoints, a.Scores)
		}
		w.printf(`</tbody></table>`)
		if len(p.Skipped) > 0 {
			w.printf(`<ul class="skipped">`)
			for _, s := range p.Skipped {
				w.printf(`<li>%s: %s (%d scores)</li>`, esc(s.Name), esc(s.Reason), s.Scores)
			}
			w.printf(`</ul>`)
		}
		w.printf(`</div>`)
		return w.err
	})
}
