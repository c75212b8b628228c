package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/slatehq/slate/internal/types"
)

type createIssueRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	ParentID    *string    `json:"parent_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SortOrder   float64    `json:"sort_order,omitempty"`
	LabelIDs    []string   `json:"label_ids,omitempty"`
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	issue := &types.Issue{
		Title:       req.Title,
		Description: req.Description,
		Status:      types.Status(req.Status),
		Priority:    types.Priority(req.Priority),
		Assignee:    req.Assignee,
		ProjectID:   req.ProjectID,
		ParentID:    req.ParentID,
		DueDate:     req.DueDate,
		SortOrder:   req.SortOrder,
	}
	created, err := s.store.CreateIssue(r.Context(), issue, req.LabelIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if issues == nil {
		issues = []*types.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := decodeJSON(r, &updates); err != nil {
		writeError(w, err)
		return
	}
	issue, err := s.store.UpdateIssue(r.Context(), r.PathValue("id"), updates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteIssue(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type restoreIssueRequest struct {
	Issue    *types.Issue `json:"issue"`
	LabelIDs []string     `json:"label_ids,omitempty"`
}

func (s *Server) handleRestoreIssue(w http.ResponseWriter, r *http.Request) {
	var req restoreIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Issue == nil {
		writeError(w, &types.ValidationError{Field: "issue", Reason: "issue is required"})
		return
	}
	restored, err := s.store.RestoreIssue(r.Context(), req.Issue, req.LabelIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, restored)
}

type batchUpdateRequest struct {
	IssueIDs []string               `json:"issue_ids"`
	Updates  map[string]interface{} `json:"updates"`
}

func (s *Server) handleBatchUpdateIssues(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	issues, err := s.store.BatchUpdateIssues(r.Context(), req.IssueIDs, req.Updates)
	if err != nil {
		writeError(w, err)
		return
	}
	if issues == nil {
		issues = []*types.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

type batchDeleteRequest struct {
	IssueIDs []string `json:"issue_ids"`
}

type batchDeleteResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleBatchDeleteIssues(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	n, err := s.store.BatchDeleteIssues(r.Context(), req.IssueIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchDeleteResponse{Deleted: n})
}

func (s *Server) handleSearchIssues(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, &types.ValidationError{Field: "limit", Reason: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	results, err := s.store.SearchIssues(r.Context(), query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []*types.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
