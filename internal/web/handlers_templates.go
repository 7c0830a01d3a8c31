package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// handleDownloadTemplate serves an example gradebook as CSV or XLSX.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = gradebook.FormatCSV
	}

	data, err := gradebook.Template(format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == gradebook.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="gradebook_template.`+format+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
