package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/server"
	"github.com/slatehq/slate/internal/storage/sqlite"
	"github.com/slatehq/slate/internal/undo"
)

// harness wires every client-side piece against a real in-process server.
type harness struct {
	api      *client.Client
	stack    *undo.Stack
	counter  *SyncCounter
	issues   *IssueStore
	projects *ProjectStore
	labels   *LabelStore
	comments *CommentStore
	executor *Executor
	failures []string
}

func newHarness(t *testing.T) (*harness, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "slate-store-test-*")
	require.NoError(t, err)
	st, err := sqlite.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}

	srv := server.New(st, server.Options{})
	ts := httptest.NewServer(srv.Handler())

	h := &harness{
		api:     client.New(ts.URL),
		stack:   undo.NewStack(),
		counter: NewSyncCounter(nil),
	}
	notifier := func(msg string) { h.failures = append(h.failures, msg) }
	h.issues = NewIssueStore(h.api, h.stack, h.counter, notifier)
	h.projects = NewProjectStore(h.api, h.stack, h.counter, notifier)
	h.labels = NewLabelStore(h.api, h.stack, h.counter, notifier)
	h.comments = NewCommentStore(h.api, h.stack, h.counter, notifier)
	h.executor = NewExecutor(h.api, h.stack, h.issues, h.projects, h.labels, h.comments, notifier)

	cleanup := func() {
		ts.Close()
		st.Close()
		os.RemoveAll(tmpDir)
	}
	return h, cleanup
}

// failingStore returns stores backed by a server that rejects everything,
// for exercising the rollback path.
func failingStore(t *testing.T) (*harness, func()) {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}))

	h := &harness{
		api:     client.New(ts.URL),
		stack:   undo.NewStack(),
		counter: NewSyncCounter(nil),
	}
	notifier := func(msg string) { h.failures = append(h.failures, msg) }
	h.issues = NewIssueStore(h.api, h.stack, h.counter, notifier)
	h.comments = NewCommentStore(h.api, h.stack, h.counter, notifier)
	return h, ts.Close
}

func TestCreateReplacesProvisionalWholesale(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "optimistic"})
	require.NoError(t, err)

	assert.NotContains(t, issue.ID, "local-")
	assert.Equal(t, 1, issue.Number)

	list := h.issues.List()
	require.Len(t, list, 1)
	assert.Same(t, issue, list[0])
	assert.Equal(t, 0, h.counter.InFlight())

	entry := h.stack.Peek()
	require.NotNil(t, entry)
	assert.Equal(t, undo.ActionCreate, entry.Action)
	assert.Equal(t, issue.ID, entry.EntityID)
}

func TestCreateFailureRemovesProvisional(t *testing.T) {
	h, cleanup := failingStore(t)
	defer cleanup()

	_, err := h.issues.Create(context.Background(), &client.CreateIssueRequest{Title: "doomed"})
	require.Error(t, err)

	assert.Empty(t, h.issues.List())
	assert.Equal(t, 0, h.counter.InFlight())
	assert.Nil(t, h.stack.Peek(), "no undo entry for an unconfirmed create")
	assert.NotEmpty(t, h.failures)
}

func TestUpdateFailureRollsBackExactly(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "stable", Priority: "high"})
	require.NoError(t, err)
	h.stack.Clear()

	before := *issue

	// Invalid status is rejected server-side after the optimistic apply.
	_, err = h.issues.Update(ctx, issue.ID, map[string]interface{}{"status": "bogus", "title": "changed"})
	require.Error(t, err)

	after, ok := h.issues.Get(issue.ID)
	require.True(t, ok)
	assert.True(t, reflect.DeepEqual(before, *after), "post-failure state must equal pre-operation state")
	assert.Nil(t, h.stack.Peek(), "no undo entry for a failed update")
	assert.NotEmpty(t, h.failures)
	assert.Equal(t, 0, h.counter.InFlight())
}

func TestUpdateRecordsPreviousFields(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "before", Priority: "low"})
	require.NoError(t, err)
	h.stack.Clear()

	updated, err := h.issues.Update(ctx, issue.ID, map[string]interface{}{
		"title":  "after",
		"status": "done",
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)

	entry := h.stack.Peek()
	require.NotNil(t, entry)
	assert.Equal(t, undo.ActionUpdate, entry.Action)
	assert.Equal(t, map[string]interface{}{
		"title":  "before",
		"status": "backlog",
	}, entry.PreviousFields)
}

func TestDeleteFailureReinserts(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "kept"})
	require.NoError(t, err)

	// Delete server-side so the store's delete 404s.
	require.NoError(t, h.api.DeleteIssue(ctx, issue.ID))

	err = h.issues.Delete(ctx, issue.ID)
	require.Error(t, err)

	_, ok := h.issues.Get(issue.ID)
	assert.True(t, ok, "failed delete must reinsert the snapshot")
}

func TestSyncCounterTracksInFlight(t *testing.T) {
	var observed []int
	c := NewSyncCounter(func(n int) { observed = append(observed, n) })

	c.Inc()
	assert.True(t, c.Syncing())
	c.Inc()
	c.Dec()
	c.Dec()
	assert.False(t, c.Syncing())
	assert.Equal(t, []int{1, 2, 1, 0}, observed)
}

func TestCommentCreateAndRollback(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "host"})
	require.NoError(t, err)

	comment, err := h.comments.Create(ctx, issue.ID, "hello")
	require.NoError(t, err)
	assert.NotContains(t, comment.ID, "local-")
	require.Len(t, h.comments.List(issue.ID), 1)

	// A create against a missing issue rolls the provisional comment back.
	_, err = h.comments.Create(ctx, "ghost", "orphan")
	require.Error(t, err)
	assert.Empty(t, h.comments.List("ghost"))
}
