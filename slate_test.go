package slate

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/server"
	"github.com/slatehq/slate/internal/storage/sqlite"
)

func newTestSession(t *testing.T) (*Session, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "slate-session-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	st, err := sqlite.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}
	srv := server.New(st, server.Options{})
	ts := httptest.NewServer(srv.Handler())

	session := NewSession(ts.URL, SessionOptions{})
	cleanup := func() {
		ts.Close()
		st.Close()
		os.RemoveAll(tmpDir)
	}
	return session, cleanup
}

// The canonical end-to-end flow: create two issues, delete the first, undo,
// and verify identity and numbering are fully preserved.
func TestSessionUndoScenario(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()

	ctx := context.Background()
	a, err := session.Issues.Create(ctx, &client.CreateIssueRequest{Title: "issue A"})
	if err != nil {
		t.Fatalf("create A failed: %v", err)
	}
	b, err := session.Issues.Create(ctx, &client.CreateIssueRequest{Title: "issue B"})
	if err != nil {
		t.Fatalf("create B failed: %v", err)
	}
	if a.Number != 1 || b.Number != 2 {
		t.Fatalf("numbers = %d, %d; want 1, 2", a.Number, b.Number)
	}

	if err := session.Issues.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete A failed: %v", err)
	}
	if err := session.Executor.Undo(ctx, nil); err != nil {
		t.Fatalf("undo failed: %v", err)
	}

	restored, err := session.Client.GetIssue(ctx, a.ID)
	if err != nil {
		t.Fatalf("GET A after undo failed: %v", err)
	}
	if restored.Title != "issue A" {
		t.Errorf("title = %q, want %q", restored.Title, "issue A")
	}
	if restored.Status != StatusBacklog {
		t.Errorf("status = %q, want backlog", restored.Status)
	}
	if restored.Number != 1 {
		t.Errorf("number = %d, want 1", restored.Number)
	}

	bAfter, err := session.Client.GetIssue(ctx, b.ID)
	if err != nil {
		t.Fatalf("GET B failed: %v", err)
	}
	if bAfter.Number != 2 {
		t.Errorf("B number = %d, want 2", bAfter.Number)
	}

	if session.Sync.Syncing() {
		t.Errorf("sync counter should be settled")
	}
}

func TestSessionFailureNotification(t *testing.T) {
	tmpDir := t.TempDir()
	st, err := sqlite.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer st.Close()
	srv := server.New(st, server.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var failures []string
	session := NewSession(ts.URL, SessionOptions{
		OnFailure: func(msg string) { failures = append(failures, msg) },
	})

	_, err = session.Issues.Create(context.Background(), &client.CreateIssueRequest{})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if len(failures) == 0 {
		t.Error("expected a failure notification")
	}
	if len(session.Issues.List()) != 0 {
		t.Error("provisional issue should be rolled back")
	}
}
