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

// IssueStore is the canonical client-side issue collection.
type IssueStore struct {
	mu       sync.Mutex
	api      *client.Client
	undo     *undo.Stack
	counter  *SyncCounter
	notifier Notifier
	issues   []*types.Issue
}

// NewIssueStore creates an empty issue store. Call Refresh to hydrate it.
func NewIssueStore(api *client.Client, undoStack *undo.Stack, counter *SyncCounter, notifier Notifier) *IssueStore {
	return &IssueStore{api: api, undo: undoStack, counter: counter, notifier: notifier}
}

// Refresh replaces local state with the server's issue collection.
func (s *IssueStore) Refresh(ctx context.Context) error {
	issues, err := s.api.ListIssues(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.issues = issues
	s.mu.Unlock()
	return nil
}

// List returns the current local collection.
func (s *IssueStore) List() []*types.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Issue, len(s.issues))
	copy(out, s.issues)
	return out
}

// Get returns the local issue with the given id.
func (s *IssueStore) Get(id string) (*types.Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range s.issues {
		if issue.ID == id {
			return issue, true
		}
	}
	return nil, false
}

// Create optimistically inserts a provisional issue, then replaces it
// wholesale with the server's canonical object. On failure the provisional
// object is removed entirely.
func (s *IssueStore) Create(ctx context.Context, req *client.CreateIssueRequest) (*types.Issue, error) {
	now := time.Now()
	provisional := &types.Issue{
		ID:          "local-" + uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      types.Status(req.Status),
		Priority:    types.Priority(req.Priority),
		Assignee:    req.Assignee,
		ProjectID:   req.ProjectID,
		ParentID:    req.ParentID,
		DueDate:     req.DueDate,
		SortOrder:   req.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if provisional.Status == "" {
		provisional.Status = types.StatusBacklog
	}
	if provisional.Priority == "" {
		provisional.Priority = types.PriorityNone
	}

	s.mu.Lock()
	s.issues = append(s.issues, provisional)
	s.mu.Unlock()
	s.counter.Inc()
	defer s.counter.Dec()

	created, err := s.api.CreateIssue(ctx, req)
	if err != nil {
		s.remove(provisional.ID)
		notify(s.notifier, "failed to create issue: %v", err)
		return nil, err
	}

	s.replace(provisional.ID, created)
	s.undo.Push(&undo.Entry{
		Action:      undo.ActionCreate,
		Entity:      undo.EntityIssue,
		EntityID:    created.ID,
		Description: fmt.Sprintf("create issue %q", created.Title),
	})
	return created, nil
}

// Update applies a partial update optimistically, then reconciles with the
// server's canonical object. A failed update restores the exact pre-mutation
// state and records nothing.
func (s *IssueStore) Update(ctx context.Context, id string, updates map[string]interface{}) (*types.Issue, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
	}
	current := s.issues[idx]

	// Snapshot touched fields from local truth before mutating.
	prevFields := make(map[string]interface{}, len(updates))
	for key := range updates {
		prevFields[key] = issueFieldValue(current, key)
	}

	full := cloneIssue(current)
	token := rollback{restore: func() {
		s.replace(id, full)
	}}

	mutated := cloneIssue(current)
	for key, value := range updates {
		applyIssueField(mutated, key, value)
	}
	mutated.UpdatedAt = time.Now()
	s.issues[idx] = mutated
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	canonical, err := s.api.UpdateIssue(ctx, id, updates)
	if err != nil {
		token.restore()
		notify(s.notifier, "failed to update issue: %v", err)
		return nil, err
	}

	s.replace(id, canonical)
	s.undo.Push(&undo.Entry{
		Action:         undo.ActionUpdate,
		Entity:         undo.EntityIssue,
		EntityID:       id,
		Description:    fmt.Sprintf("update issue %q", canonical.Title),
		PreviousFields: prevFields,
	})
	return canonical, nil
}

// Delete optimistically removes the issue, reinserting it at its old position
// if the server rejects the delete.
func (s *IssueStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
	}
	snapshot := cloneIssue(s.issues[idx])
	s.issues = append(s.issues[:idx], s.issues[idx+1:]...)
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	if err := s.api.DeleteIssue(ctx, id); err != nil {
		s.insertAt(idx, snapshot)
		notify(s.notifier, "failed to delete issue: %v", err)
		return err
	}

	s.undo.Push(&undo.Entry{
		Action:      undo.ActionDelete,
		Entity:      undo.EntityIssue,
		EntityID:    id,
		Description: fmt.Sprintf("delete issue %q", snapshot.Title),
		Snapshot:    snapshot,
	})
	return nil
}

// indexOf must be called with the lock held.
func (s *IssueStore) indexOf(id string) int {
	for i, issue := range s.issues {
		if issue.ID == id {
			return i
		}
	}
	return -1
}

func (s *IssueStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		s.issues = append(s.issues[:idx], s.issues[idx+1:]...)
	}
}

// replace swaps the issue with the given id for the supplied object. If the
// id is unknown the object is appended, so a reconciliation never gets lost.
func (s *IssueStore) replace(id string, issue *types.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		s.issues[idx] = issue
		return
	}
	s.issues = append(s.issues, issue)
}

func (s *IssueStore) insertAt(idx int, issue *types.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx > len(s.issues) {
		idx = len(s.issues)
	}
	s.issues = append(s.issues[:idx], append([]*types.Issue{issue}, s.issues[idx:]...)...)
}

// refetch replaces the local copy of one issue with the server's view, used
// after comment mutations since comment count is derived server-side.
func (s *IssueStore) refetch(ctx context.Context, id string) error {
	issue, err := s.api.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	s.replace(id, issue)
	return nil
}
