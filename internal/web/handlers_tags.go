package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

// maxTagBody bounds tag create/update request bodies.
const maxTagBody = 64 << 10

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTagInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	tag, err := s.tags.Create(r.Context(), chi.URLParam(r, "tenantID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	in, err := decodeTagInput(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	tag, err := s.tags.Update(r.Context(), chi.URLParam(r, "tenantID"), id, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.tags.Delete(r.Context(), chi.URLParam(r, "tenantID"), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeTagInput(w http.ResponseWriter, r *http.Request) (gradebook.TagInput, error) {
	var in gradebook.TagInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTagBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("%w: invalid JSON body: %v", gradebook.ErrInvalidInput, err)
	}
	return in, nil
}
