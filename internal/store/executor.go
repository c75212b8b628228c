package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/types"
	"github.com/slatehq/slate/internal/undo"
)

// ErrNothingToUndo is returned when the stack holds no live entries.
var ErrNothingToUndo = errors.New("nothing to undo")

// Executor reverses recorded mutations. Each action is undone through its
// inverse: a delete is restored, an update is reverted through the normal
// update path so invariants are re-validated, a create is deleted.
type Executor struct {
	api      *client.Client
	stack    *undo.Stack
	issues   *IssueStore
	projects *ProjectStore
	labels   *LabelStore
	comments *CommentStore
	notifier Notifier
}

// NewExecutor wires an executor to the stack and the stores it repairs.
func NewExecutor(api *client.Client, stack *undo.Stack, issues *IssueStore, projects *ProjectStore, labels *LabelStore, comments *CommentStore, notifier Notifier) *Executor {
	return &Executor{
		api:      api,
		stack:    stack,
		issues:   issues,
		projects: projects,
		labels:   labels,
		comments: comments,
		notifier: notifier,
	}
}

// Undo reverses the given entry, or pops the most recent one if entry is nil.
// A failed undo is reported and not retried; the entry stays consumed.
func (e *Executor) Undo(ctx context.Context, entry *undo.Entry) error {
	if entry == nil {
		entry = e.stack.Pop()
		if entry == nil {
			return ErrNothingToUndo
		}
	}

	var err error
	switch entry.Entity {
	case undo.EntityIssue:
		err = e.undoIssue(ctx, entry)
	case undo.EntityProject:
		err = e.undoProject(ctx, entry)
	case undo.EntityLabel:
		err = e.undoLabel(ctx, entry)
	case undo.EntityComment:
		err = e.undoComment(ctx, entry)
	default:
		err = fmt.Errorf("unknown undo entity type %q", entry.Entity)
	}

	if err != nil {
		notify(e.notifier, "undo failed: %v", err)
		return err
	}
	return nil
}

func (e *Executor) undoIssue(ctx context.Context, entry *undo.Entry) error {
	switch entry.Action {
	case undo.ActionDelete:
		snapshot, ok := entry.Snapshot.(*types.Issue)
		if !ok {
			return fmt.Errorf("undo entry %s has no issue snapshot", entry.ID)
		}
		labelIDs := make([]string, 0, len(snapshot.Labels))
		for _, l := range snapshot.Labels {
			labelIDs = append(labelIDs, l.ID)
		}
		if _, err := e.api.RestoreIssue(ctx, snapshot, labelIDs); err != nil {
			return err
		}
		// Refetch the whole collection so derived aggregates are repaired.
		return e.issues.Refresh(ctx)

	case undo.ActionUpdate:
		canonical, err := e.api.UpdateIssue(ctx, entry.EntityID, entry.PreviousFields)
		if err != nil {
			return err
		}
		e.issues.replace(entry.EntityID, canonical)
		return nil

	case undo.ActionCreate:
		if err := e.api.DeleteIssue(ctx, entry.EntityID); err != nil {
			return err
		}
		e.issues.remove(entry.EntityID)
		return nil
	}
	return fmt.Errorf("unknown undo action %q", entry.Action)
}

func (e *Executor) undoProject(ctx context.Context, entry *undo.Entry) error {
	switch entry.Action {
	case undo.ActionDelete:
		snapshot, ok := entry.Snapshot.(*types.Project)
		if !ok {
			return fmt.Errorf("undo entry %s has no project snapshot", entry.ID)
		}
		if _, err := e.api.RestoreProject(ctx, snapshot); err != nil {
			return err
		}
		return e.projects.Refresh(ctx)

	case undo.ActionUpdate:
		canonical, err := e.api.UpdateProject(ctx, entry.EntityID, entry.PreviousFields)
		if err != nil {
			return err
		}
		e.projects.replace(entry.EntityID, canonical)
		return nil

	case undo.ActionCreate:
		if err := e.api.DeleteProject(ctx, entry.EntityID); err != nil {
			return err
		}
		e.projects.remove(entry.EntityID)
		return nil
	}
	return fmt.Errorf("unknown undo action %q", entry.Action)
}

func (e *Executor) undoLabel(ctx context.Context, entry *undo.Entry) error {
	switch entry.Action {
	case undo.ActionDelete:
		snapshot, ok := entry.Snapshot.(*types.Label)
		if !ok {
			return fmt.Errorf("undo entry %s has no label snapshot", entry.ID)
		}
		if _, err := e.api.RestoreLabel(ctx, snapshot); err != nil {
			return err
		}
		return e.labels.Refresh(ctx)

	case undo.ActionUpdate:
		canonical, err := e.api.UpdateLabel(ctx, entry.EntityID, entry.PreviousFields)
		if err != nil {
			return err
		}
		e.labels.replace(entry.EntityID, canonical)
		return nil

	case undo.ActionCreate:
		if err := e.api.DeleteLabel(ctx, entry.EntityID); err != nil {
			return err
		}
		e.labels.remove(entry.EntityID)
		return nil
	}
	return fmt.Errorf("unknown undo action %q", entry.Action)
}

// undoComment expresses each reversal as a request scoped to the owning
// issue, then refetches the issue's comment list and the issue itself, since
// comment count is derived server-side.
func (e *Executor) undoComment(ctx context.Context, entry *undo.Entry) error {
	snapshot, ok := entry.Snapshot.(*types.Comment)
	if !ok {
		return fmt.Errorf("undo entry %s has no comment snapshot", entry.ID)
	}

	switch entry.Action {
	case undo.ActionDelete:
		if _, err := e.api.RestoreComment(ctx, snapshot); err != nil {
			return err
		}
	case undo.ActionUpdate:
		if _, err := e.api.UpdateComment(ctx, entry.EntityID, entry.PreviousFields); err != nil {
			return err
		}
	case undo.ActionCreate:
		if err := e.api.DeleteComment(ctx, entry.EntityID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown undo action %q", entry.Action)
	}

	if err := e.comments.Refresh(ctx, snapshot.IssueID); err != nil {
		return err
	}
	return e.issues.refetch(ctx, snapshot.IssueID)
}
