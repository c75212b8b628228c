package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/types"
)

func TestUndoCreateDeletesIssue(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "transient"})
	require.NoError(t, err)

	require.NoError(t, h.executor.Undo(ctx, nil))

	_, ok := h.issues.Get(issue.ID)
	assert.False(t, ok, "undone create must vanish from the store")
	_, err = h.api.GetIssue(ctx, issue.ID)
	assert.True(t, client.IsNotFound(err))
}

func TestUndoDeleteRestoresIssue(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	label, err := h.labels.Create(ctx, "bug", "#d73a4a")
	require.NoError(t, err)

	a, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "first", LabelIDs: []string{label.ID}})
	require.NoError(t, err)
	b, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "second"})
	require.NoError(t, err)
	require.Equal(t, 1, a.Number)
	require.Equal(t, 2, b.Number)

	require.NoError(t, h.issues.Delete(ctx, a.ID))
	require.NoError(t, h.executor.Undo(ctx, nil))

	restored, ok := h.issues.Get(a.ID)
	require.True(t, ok, "undone delete must reappear in the store")
	assert.Equal(t, a.Title, restored.Title)
	assert.Equal(t, types.StatusBacklog, restored.Status)
	assert.Equal(t, 1, restored.Number, "restore must keep the original number")
	require.Len(t, restored.Labels, 1)
	assert.Equal(t, "bug", restored.Labels[0].Name)

	// B's number is untouched.
	after, ok := h.issues.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, 2, after.Number)
}

func TestUndoUpdateRevertsFields(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "original", Priority: "low"})
	require.NoError(t, err)

	_, err = h.issues.Update(ctx, issue.ID, map[string]interface{}{
		"title":    "edited",
		"priority": "urgent",
	})
	require.NoError(t, err)

	require.NoError(t, h.executor.Undo(ctx, nil))

	reverted, ok := h.issues.Get(issue.ID)
	require.True(t, ok)
	assert.Equal(t, "original", reverted.Title)
	assert.Equal(t, types.PriorityLow, reverted.Priority)

	// The server agrees with the local view.
	remote, err := h.api.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", remote.Title)
}

func TestUndoDueDateUpdateReverts(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "deadline"})
	require.NoError(t, err)

	first := time.Date(2026, 9, 15, 12, 30, 0, 0, time.UTC)
	_, err = h.issues.Update(ctx, issue.ID, map[string]interface{}{
		"due_date": first.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	second := first.Add(7 * 24 * time.Hour)
	_, err = h.issues.Update(ctx, issue.ID, map[string]interface{}{
		"due_date": second.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	// The revert replays the previous value as a timestamp string.
	require.NoError(t, h.executor.Undo(ctx, nil))

	reverted, ok := h.issues.Get(issue.ID)
	require.True(t, ok)
	require.NotNil(t, reverted.DueDate)
	assert.True(t, reverted.DueDate.Equal(first), "due_date = %v, want %v", reverted.DueDate, first)

	remote, err := h.api.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, remote.DueDate)
	assert.True(t, remote.DueDate.Equal(first), "server due_date = %v, want %v", remote.DueDate, first)
}

func TestDoubleUndoOfDeleteConflicts(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "once"})
	require.NoError(t, err)
	require.NoError(t, h.issues.Delete(ctx, issue.ID))

	entry := h.stack.Pop()
	require.NotNil(t, entry)

	require.NoError(t, h.executor.Undo(ctx, entry))

	// Replaying the same entry hits the restore conflict guard.
	err = h.executor.Undo(ctx, entry)
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))
	assert.NotEmpty(t, h.failures)
}

func TestUndoCommentRefreshesIssue(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := h.issues.Create(ctx, &client.CreateIssueRequest{Title: "host"})
	require.NoError(t, err)

	_, err = h.comments.Create(ctx, issue.ID, "to be undone")
	require.NoError(t, err)

	cached, ok := h.issues.Get(issue.ID)
	require.True(t, ok)
	require.Equal(t, 0, cached.CommentCount, "create response predates the comment")

	// Undo the comment create: the comment disappears and the issue's derived
	// count is refetched rather than patched locally.
	require.NoError(t, h.executor.Undo(ctx, nil))

	assert.Empty(t, h.comments.List(issue.ID))
	refreshed, ok := h.issues.Get(issue.ID)
	require.True(t, ok)
	assert.Equal(t, 0, refreshed.CommentCount)
	_, err = h.api.GetIssue(ctx, issue.ID)
	require.NoError(t, err)

	// Now delete and undo: the comment comes back with its identity.
	restoredComment, err := h.comments.Create(ctx, issue.ID, "kept")
	require.NoError(t, err)
	require.NoError(t, h.comments.Delete(ctx, restoredComment.ID))
	require.NoError(t, h.executor.Undo(ctx, nil))

	list := h.comments.List(issue.ID)
	require.Len(t, list, 1)
	assert.Equal(t, restoredComment.ID, list[0].ID)
	assert.Equal(t, "kept", list[0].Content)

	refreshed, ok = h.issues.Get(issue.ID)
	require.True(t, ok)
	assert.Equal(t, 1, refreshed.CommentCount)
}

func TestUndoEmptyStack(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	err := h.executor.Undo(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestUndoProjectAndLabelRoundtrip(t *testing.T) {
	h, cleanup := newHarness(t)
	defer cleanup()

	ctx := context.Background()
	project, err := h.projects.Create(ctx, "Mobile", "#0366d6")
	require.NoError(t, err)

	_, err = h.projects.Update(ctx, project.ID, map[string]interface{}{"name": "Renamed"})
	require.NoError(t, err)
	require.NoError(t, h.executor.Undo(ctx, nil))

	reverted, ok := h.projects.Get(project.ID)
	require.True(t, ok)
	assert.Equal(t, "Mobile", reverted.Name)

	require.NoError(t, h.projects.Delete(ctx, project.ID))
	require.NoError(t, h.executor.Undo(ctx, nil))
	restored, ok := h.projects.Get(project.ID)
	require.True(t, ok)
	assert.Equal(t, "Mobile", restored.Name)

	label, err := h.labels.Create(ctx, "infra", "#ededed")
	require.NoError(t, err)
	require.NoError(t, h.labels.Delete(ctx, label.ID))
	require.NoError(t, h.executor.Undo(ctx, nil))
	back, ok := h.labels.Get(label.ID)
	require.True(t, ok)
	assert.Equal(t, "infra", back.Name)
}
