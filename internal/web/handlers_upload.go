package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// handleUpload imports one gradebook file into a tenant.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUploadForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
	}

	report, err := s.importer.Import(ctx, gradebook.ImportRequest{
		TenantID: chi.URLParam(r, "tenantID"),
		FileName: form.fileName,
		Data:     form.data,
		TagIDs:   form.tagIDs,
		NewTags:  form.newTags,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, uploadResultView(report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handlePreview analyzes a file and returns what an upload would do.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUploadForm(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	preview, err := s.importer.Preview(form.data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, previewView(preview))
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleListUploads returns the tenant's upload history, newest first.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.reports.Uploads(r.Context(), chi.URLParam(r, "tenantID"), parseIntParam(r, "limit", 0))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}
