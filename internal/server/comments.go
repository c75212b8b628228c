package server

import (
	"net/http"

	"github.com/slatehq/slate/internal/types"
)

type createCommentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	comment, err := s.store.CreateComment(r.Context(), &types.Comment{
		IssueID: r.PathValue("id"),
		Content: req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	issueID := r.PathValue("id")
	if _, err := s.store.GetIssue(r.Context(), issueID); err != nil {
		writeError(w, err)
		return
	}
	comments, err := s.store.ListComments(r.Context(), issueID)
	if err != nil {
		writeError(w, err)
		return
	}
	if comments == nil {
		comments = []*types.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := decodeJSON(r, &updates); err != nil {
		writeError(w, err)
		return
	}
	comment, err := s.store.UpdateComment(r.Context(), r.PathValue("id"), updates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteComment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreComment(w http.ResponseWriter, r *http.Request) {
	var comment types.Comment
	if err := decodeJSON(r, &comment); err != nil {
		writeError(w, err)
		return
	}
	restored, err := s.store.RestoreComment(r.Context(), &comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, restored)
}
