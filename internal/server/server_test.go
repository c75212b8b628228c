package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slatehq/slate/internal/storage/sqlite"
	"github.com/slatehq/slate/internal/types"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "slate-server-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := sqlite.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}

	srv := New(store, Options{
		AttachmentsDir: filepath.Join(tmpDir, "attachments"),
	})
	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return srv, cleanup
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeIssue(t *testing.T, rec *httptest.ResponseRecorder) *types.Issue {
	t.Helper()
	var issue types.Issue
	if err := json.Unmarshal(rec.Body.Bytes(), &issue); err != nil {
		t.Fatalf("failed to decode issue: %v (%s)", err, rec.Body.String())
	}
	return &issue
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error: %v (%s)", err, rec.Body.String())
	}
	return resp.Error
}

func TestCreateIssueEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{
		"title":    "First issue",
		"priority": "high",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	issue := decodeIssue(t, rec)
	if issue.Number != 1 {
		t.Errorf("number = %d, want 1", issue.Number)
	}
	if issue.Priority != types.PriorityHigh {
		t.Errorf("priority = %q, want high", issue.Priority)
	}
	if got := rec.Header().Get("X-Slate-Version"); got != Version {
		t.Errorf("version header = %q, want %q", got, Version)
	}
}

func TestCreateIssueValidationEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{
		"description": "no title",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg == "" {
		t.Error("expected an error message")
	}
}

func TestUpdateIssueDueDateEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	issue := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "due soon"}))

	// JSON clients send due_date as an RFC 3339 string.
	rec := doJSON(t, srv, http.MethodPatch, "/api/v1/issues/"+issue.ID, map[string]interface{}{
		"due_date": "2026-09-15T12:30:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	updated := decodeIssue(t, rec)
	if updated.DueDate == nil || !updated.DueDate.Equal(time.Date(2026, 9, 15, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("due_date = %v, want 2026-09-15T12:30:00Z", updated.DueDate)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/issues/"+issue.ID, map[string]interface{}{
		"due_date": "someday",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIssueNotFoundEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/issues/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHierarchyViolationEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	parent := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "parent"}))
	child := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "child"}))
	grand := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "grand"}))

	rec := doJSON(t, srv, http.MethodPatch, "/api/v1/issues/"+child.ID, map[string]interface{}{"parent_id": parent.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("setting parent failed: %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/issues/"+grand.ID, map[string]interface{}{"parent_id": child.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "cannot nest more than one level deep" {
		t.Errorf("message = %q", msg)
	}
}

func TestDeleteAndRestoreIssueEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	issue := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "ephemeral"}))

	rec := doJSON(t, srv, http.MethodDelete, "/api/v1/issues/"+issue.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/issues/restore", map[string]interface{}{"issue": issue})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	restored := decodeIssue(t, rec)
	if restored.ID != issue.ID || restored.Number != issue.Number {
		t.Errorf("restored = %+v, want identity preserved", restored)
	}

	// Second restore conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/issues/restore", map[string]interface{}{"issue": issue})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestBatchEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	a := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "a"}))
	b := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "b"}))

	rec := doJSON(t, srv, http.MethodPatch, "/api/v1/issues/batch", map[string]interface{}{
		"issue_ids": []string{a.ID, b.ID, "missing"},
		"updates":   map[string]interface{}{"status": "done"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var updated []*types.Issue
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(updated) != 2 {
		t.Errorf("updated %d issues, want 2", len(updated))
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/issues/batch-delete", map[string]interface{}{
		"issue_ids": []string{a.ID, "missing"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp batchDeleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "login crash"})
	doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "dark mode"})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/issues/search?q=login", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var results []*types.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/issues/search?q=login&limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestCommentEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	issue := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "thread"}))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/issues/"+issue.ID+"/comments", map[string]interface{}{"content": "hi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var comment types.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &comment); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/issues/"+issue.ID+"/comments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var comments []*types.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &comments); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != comment.ID {
		t.Errorf("comments = %v", comments)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/issues/ghost/comments", map[string]interface{}{"content": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing issue, got %d", rec.Code)
	}
}

func TestLabelConflictEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/labels", map[string]interface{}{"name": "bug"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/labels", map[string]interface{}{"name": "bug"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAttachmentUploadEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	issue := decodeIssue(t, doJSON(t, srv, http.MethodPost, "/api/v1/issues", map[string]interface{}{"title": "host"}))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fmt.Fprint(fw, "attachment body")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/issues/"+issue.ID+"/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var attachment types.Attachment
	if err := json.Unmarshal(rec.Body.Bytes(), &attachment); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if attachment.Filename != "notes.txt" {
		t.Errorf("filename = %q", attachment.Filename)
	}
	if _, err := os.Stat(attachment.StoragePath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
}

func TestVersionCheck(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/issues", nil)
	req.Header.Set("X-Slate-Version", "99.0.0")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for incompatible version, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/issues", nil)
	req.Header.Set("X-Slate-Version", Version)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for matching version, got %d", rec.Code)
	}
}
