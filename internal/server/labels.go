package server

import (
	"net/http"

	"github.com/slatehq/slate/internal/types"
)

type createLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req createLabelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	label, err := s.store.CreateLabel(r.Context(), &types.Label{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.store.ListLabels(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if labels == nil {
		labels = []*types.Label{}
	}
	writeJSON(w, http.StatusOK, labels)
}

func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := decodeJSON(r, &updates); err != nil {
		writeError(w, err)
		return
	}
	label, err := s.store.UpdateLabel(r.Context(), r.PathValue("id"), updates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, label)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteLabel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreLabel(w http.ResponseWriter, r *http.Request) {
	var label types.Label
	if err := decodeJSON(r, &label); err != nil {
		writeError(w, err)
		return
	}
	restored, err := s.store.RestoreLabel(r.Context(), &label)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, restored)
}
