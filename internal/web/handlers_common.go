// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// uuidParam parses a UUID URL parameter. A malformed ID can match nothing,
// so it reports ErrNotFound.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", name, chi.URLParam(r, name), gradebook.ErrNotFound)
	}
	return id, nil
}

// uploadForm is the multipart body of an upload or preview request.
type uploadForm struct {
	fileName string
	data     []byte
	tagIDs   []uuid.UUID
	newTags  []string
}

// readUploadForm reads the "file" part plus the optional "tags" (JSON array
// of tag IDs) and "new_tags" (comma-separated names) fields.
func (s *Server) readUploadForm(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	if r.ContentLength > maxSize {
		return nil, errFileTooBig
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, errFileTooBig
		}
		return nil, fmt.Errorf("%w: expected a multipart form with a file field: %v", gradebook.ErrInvalidInput, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	form := &uploadForm{fileName: header.Filename, data: data}

	if raw := strings.TrimSpace(r.FormValue("tags")); raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("%w: tags must be a JSON array of IDs", gradebook.ErrInvalidInput)
		}
		for _, s := range ids {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("%w: tag id %q", gradebook.ErrInvalidInput, s)
			}
			form.tagIDs = append(form.tagIDs, id)
		}
	}

	for _, name := range strings.Split(r.FormValue("new_tags"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			form.newTags = append(form.newTags, name)
		}
	}

	return form, nil
}
