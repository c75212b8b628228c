package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/slatehq/slate/internal/types"
)

func TestProjectLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	project, err := store.CreateProject(ctx, &types.Project{Name: "Mobile", Color: "#0366d6"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if project.Status != types.ProjectActive {
		t.Errorf("default status = %q, want active", project.Status)
	}

	updated, err := store.UpdateProject(ctx, project.ID, map[string]interface{}{
		"name":   "Mobile App",
		"status": "paused",
	})
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	if updated.Name != "Mobile App" || updated.Status != types.ProjectPaused {
		t.Errorf("updated project = %+v", updated)
	}

	if err := store.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if _, err := store.GetProject(ctx, project.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetProject after delete = %v, want ErrNotFound", err)
	}
}

func TestProjectDerivedCounts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	project, err := store.CreateProject(ctx, &types.Project{Name: "Backend"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		issue, err := store.CreateIssue(ctx, &types.Issue{Title: "task", ProjectID: &project.ID}, nil)
		if err != nil {
			t.Fatalf("CreateIssue failed: %v", err)
		}
		if i == 0 {
			if _, err := store.UpdateIssue(ctx, issue.ID, map[string]interface{}{"status": "done"}); err != nil {
				t.Fatalf("UpdateIssue failed: %v", err)
			}
		}
	}

	got, err := store.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.IssueCount != 3 {
		t.Errorf("IssueCount = %d, want 3", got.IssueCount)
	}
	if got.DoneCount != 1 {
		t.Errorf("DoneCount = %d, want 1", got.DoneCount)
	}
}

func TestDeleteProjectLeavesIssues(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	project, err := store.CreateProject(ctx, &types.Project{Name: "Doomed"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "survivor", ProjectID: &project.ID}, nil)
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	if err := store.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if got.ProjectID == nil || *got.ProjectID != project.ID {
		t.Errorf("issue project_id = %v, want dangling %s", got.ProjectID, project.ID)
	}
}

func TestRestoreProjectConflict(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	project, err := store.CreateProject(ctx, &types.Project{Name: "Restored"})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	if _, err := store.RestoreProject(ctx, project); !types.IsConflict(err) {
		t.Errorf("restore over live project = %v, want conflict", err)
	}

	if err := store.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	restored, err := store.RestoreProject(ctx, project)
	if err != nil {
		t.Fatalf("RestoreProject failed: %v", err)
	}
	if restored.ID != project.ID || !restored.CreatedAt.Equal(project.CreatedAt) {
		t.Errorf("restored project = %+v", restored)
	}
}

func TestLabelNameUnique(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := store.CreateLabel(ctx, &types.Label{Name: "bug"}); err != nil {
		t.Fatalf("CreateLabel failed: %v", err)
	}
	_, err := store.CreateLabel(ctx, &types.Label{Name: "bug"})
	if !types.IsConflict(err) {
		t.Errorf("duplicate label error = %v, want conflict", err)
	}
}

func TestDeleteLabelDetachesFromIssues(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	label, err := store.CreateLabel(ctx, &types.Label{Name: "bug"})
	if err != nil {
		t.Fatalf("CreateLabel failed: %v", err)
	}
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "tagged"}, []string{label.ID})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	if err := store.DeleteLabel(ctx, label.ID); err != nil {
		t.Fatalf("DeleteLabel failed: %v", err)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if len(got.Labels) != 0 {
		t.Errorf("labels after label delete = %v, want empty", got.Labels)
	}
}

func TestCommentLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "discussed"}, nil)
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	comment, err := store.CreateComment(ctx, &types.Comment{IssueID: issue.ID, Content: "first"})
	if err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if got.CommentCount != 1 {
		t.Errorf("CommentCount = %d, want 1", got.CommentCount)
	}

	updated, err := store.UpdateComment(ctx, comment.ID, map[string]interface{}{"content": "edited"})
	if err != nil {
		t.Fatalf("UpdateComment failed: %v", err)
	}
	if updated.Content != "edited" {
		t.Errorf("content = %q, want edited", updated.Content)
	}

	if err := store.DeleteComment(ctx, comment.ID); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
	if _, err := store.GetComment(ctx, comment.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetComment after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateCommentOnMissingIssue(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.CreateComment(context.Background(), &types.Comment{IssueID: "ghost", Content: "hi"})
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRestoreComment(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "host"}, nil)
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	comment, err := store.CreateComment(ctx, &types.Comment{IssueID: issue.ID, Content: "kept"})
	if err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	if err := store.DeleteComment(ctx, comment.ID); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
	restored, err := store.RestoreComment(ctx, comment)
	if err != nil {
		t.Fatalf("RestoreComment failed: %v", err)
	}
	if restored.ID != comment.ID || restored.Content != "kept" {
		t.Errorf("restored comment = %+v", restored)
	}

	if _, err := store.RestoreComment(ctx, comment); !types.IsConflict(err) {
		t.Errorf("second restore = %v, want conflict", err)
	}
}

func TestListCommentsOrder(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "thread"}, nil)
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	for _, content := range []string{"one", "two", "three"} {
		if _, err := store.CreateComment(ctx, &types.Comment{IssueID: issue.ID, Content: content}); err != nil {
			t.Fatalf("CreateComment failed: %v", err)
		}
	}

	comments, err := store.ListComments(ctx, issue.ID)
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("got %d comments, want 3", len(comments))
	}
	if comments[0].Content != "one" || comments[2].Content != "three" {
		t.Errorf("comments out of creation order: %v", comments)
	}
}

func TestDeleteAttachmentBestEffortUnlink(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "host"}, nil)
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	attachment, err := store.AddAttachment(ctx, &types.Attachment{
		IssueID:     issue.ID,
		Filename:    "gone.txt",
		StoragePath: filepath.Join(t.TempDir(), "never-written.txt"),
	})
	if err != nil {
		t.Fatalf("AddAttachment failed: %v", err)
	}

	// The file never existed; the delete must still succeed.
	if err := store.DeleteAttachment(ctx, attachment.ID); err != nil {
		t.Fatalf("DeleteAttachment failed: %v", err)
	}

	attachments, err := store.ListAttachments(ctx, issue.ID)
	if err != nil {
		t.Fatalf("ListAttachments failed: %v", err)
	}
	if len(attachments) != 0 {
		t.Errorf("attachments after delete = %v, want empty", attachments)
	}
}

func TestAttachmentAppearsOnIssue(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	issue, err := store.CreateIssue(ctx, &types.Issue{Title: "host"}, nil)
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}
	_, err = store.AddAttachment(ctx, &types.Attachment{
		IssueID:     issue.ID,
		Filename:    "log.txt",
		StoragePath: path,
		MimeType:    "text/plain",
		Size:        4,
	})
	if err != nil {
		t.Fatalf("AddAttachment failed: %v", err)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "log.txt" {
		t.Errorf("attachments = %v", got.Attachments)
	}
}
