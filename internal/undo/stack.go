// Package undo keeps a bounded, time-limited history of completed mutations
// so the most recent ones can be reversed.
package undo

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActionType is the mutation an entry records. The reversal is the inverse:
// a recorded create is undone by a delete, a delete by a restore.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
)

// EntityType identifies which store an entry belongs to.
type EntityType string

const (
	EntityIssue   EntityType = "issue"
	EntityProject EntityType = "project"
	EntityLabel   EntityType = "label"
	EntityComment EntityType = "comment"
)

// Entry records one confirmed mutation. For updates, PreviousFields holds
// only the fields the mutation touched, with their pre-mutation values. For
// deletes, Snapshot holds the full entity (plus whatever the restore path
// needs, e.g. label ids) so it can be recreated verbatim.
type Entry struct {
	ID             string
	Action         ActionType
	Entity         EntityType
	EntityID       string
	Description    string
	PreviousFields map[string]interface{}
	Snapshot       interface{}
	CreatedAt      time.Time
}

const (
	maxEntries  = 50
	entryExpiry = 10 * time.Minute
)

// Stack is a bounded LIFO of undo entries. Entries expire individually;
// expired entries are garbage-collected when encountered by Pop.
type Stack struct {
	mu      sync.Mutex
	entries []*Entry // most recent first
	now     func() time.Time
}

// NewStack creates an empty undo stack.
func NewStack() *Stack {
	return &Stack{now: time.Now}
}

// Push records an entry, assigning its id and timestamp, and drops the oldest
// entry if the stack is full.
func (s *Stack) Push(entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	s.entries = append([]*Entry{entry}, s.entries...)
	if len(s.entries) > maxEntries {
		s.entries = s.entries[:maxEntries]
	}
}

// Peek returns the most recent non-expired entry without removing it, or nil.
func (s *Stack) Peek() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, entry := range s.entries {
		if now.Sub(entry.CreatedAt) < entryExpiry {
			return entry
		}
	}
	return nil
}

// Pop removes and returns the most recent non-expired entry, discarding any
// expired entries it scans past. Returns nil if nothing undoable remains.
func (s *Stack) Pop() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for i, entry := range s.entries {
		if now.Sub(entry.CreatedAt) < entryExpiry {
			s.entries = s.entries[i+1:]
			return entry
		}
	}
	s.entries = nil
	return nil
}

// Clear empties the stack unconditionally.
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Len reports the number of entries currently held, expired or not.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
