package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/types"
	"github.com/slatehq/slate/internal/undo"
)

// CommentStore is the canonical client-side comment state, keyed by owning
// issue. Comment snapshots always carry their issue id so an undo can be
// expressed as an issue-scoped request.
type CommentStore struct {
	mu       sync.Mutex
	api      *client.Client
	undo     *undo.Stack
	counter  *SyncCounter
	notifier Notifier
	comments map[string][]*types.Comment
}

// NewCommentStore creates an empty comment store.
func NewCommentStore(api *client.Client, undoStack *undo.Stack, counter *SyncCounter, notifier Notifier) *CommentStore {
	return &CommentStore{
		api:      api,
		undo:     undoStack,
		counter:  counter,
		notifier: notifier,
		comments: make(map[string][]*types.Comment),
	}
}

// Refresh replaces the local comment list for one issue with the server's.
func (s *CommentStore) Refresh(ctx context.Context, issueID string) error {
	comments, err := s.api.ListComments(ctx, issueID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.comments[issueID] = comments
	s.mu.Unlock()
	return nil
}

// List returns the local comment list for an issue.
func (s *CommentStore) List(issueID string) []*types.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Comment, len(s.comments[issueID]))
	copy(out, s.comments[issueID])
	return out
}

// Create optimistically appends a provisional comment, replaced wholesale by
// the server's canonical object on success.
func (s *CommentStore) Create(ctx context.Context, issueID, content string) (*types.Comment, error) {
	now := time.Now()
	provisional := &types.Comment{
		ID:        "local-" + uuid.NewString(),
		IssueID:   issueID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.comments[issueID] = append(s.comments[issueID], provisional)
	s.mu.Unlock()
	s.counter.Inc()
	defer s.counter.Dec()

	created, err := s.api.CreateComment(ctx, issueID, content)
	if err != nil {
		s.remove(issueID, provisional.ID)
		notify(s.notifier, "failed to add comment: %v", err)
		return nil, err
	}

	s.replaceIn(issueID, provisional.ID, created)
	snapshot := *created
	s.undo.Push(&undo.Entry{
		Action:      undo.ActionCreate,
		Entity:      undo.EntityComment,
		EntityID:    created.ID,
		Description: "add comment",
		Snapshot:    &snapshot,
	})
	return created, nil
}

// Update edits a comment's content optimistically, rolling back on failure.
func (s *CommentStore) Update(ctx context.Context, id, content string) (*types.Comment, error) {
	s.mu.Lock()
	issueID, idx := s.locate(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("comment %s: %w", id, types.ErrNotFound)
	}
	current := s.comments[issueID][idx]
	prev := *current

	token := rollback{restore: func() {
		s.replaceIn(issueID, id, &prev)
	}}

	mutated := *current
	mutated.Content = content
	mutated.UpdatedAt = time.Now()
	s.comments[issueID][idx] = &mutated
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	canonical, err := s.api.UpdateComment(ctx, id, map[string]interface{}{"content": content})
	if err != nil {
		token.restore()
		notify(s.notifier, "failed to update comment: %v", err)
		return nil, err
	}

	s.replaceIn(issueID, id, canonical)
	s.undo.Push(&undo.Entry{
		Action:         undo.ActionUpdate,
		Entity:         undo.EntityComment,
		EntityID:       id,
		Description:    "edit comment",
		PreviousFields: map[string]interface{}{"content": prev.Content},
		Snapshot:       &prev,
	})
	return canonical, nil
}

// Delete optimistically removes a comment, reinserting it on failure.
func (s *CommentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	issueID, idx := s.locate(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("comment %s: %w", id, types.ErrNotFound)
	}
	snapshot := *s.comments[issueID][idx]
	s.comments[issueID] = append(s.comments[issueID][:idx], s.comments[issueID][idx+1:]...)
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	if err := s.api.DeleteComment(ctx, id); err != nil {
		s.insertAt(issueID, idx, &snapshot)
		notify(s.notifier, "failed to delete comment: %v", err)
		return err
	}

	s.undo.Push(&undo.Entry{
		Action:      undo.ActionDelete,
		Entity:      undo.EntityComment,
		EntityID:    id,
		Description: "delete comment",
		Snapshot:    &snapshot,
	})
	return nil
}

// locate must be called with the lock held.
func (s *CommentStore) locate(id string) (string, int) {
	for issueID, list := range s.comments {
		for i, comment := range list {
			if comment.ID == id {
				return issueID, i
			}
		}
	}
	return "", -1
}

func (s *CommentStore) remove(issueID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.comments[issueID]
	for i, comment := range list {
		if comment.ID == id {
			s.comments[issueID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (s *CommentStore) replaceIn(issueID, id string, comment *types.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.comments[issueID]
	for i, c := range list {
		if c.ID == id {
			list[i] = comment
			return
		}
	}
	s.comments[issueID] = append(list, comment)
}

func (s *CommentStore) insertAt(issueID string, idx int, comment *types.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.comments[issueID]
	if idx < 0 || idx > len(list) {
		idx = len(list)
	}
	s.comments[issueID] = append(list[:idx], append([]*types.Comment{comment}, list[idx:]...)...)
}
