package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/types"
	"github.com/slatehq/slate/internal/undo"
)

// LabelStore is the canonical client-side label collection.
type LabelStore struct {
	mu       sync.Mutex
	api      *client.Client
	undo     *undo.Stack
	counter  *SyncCounter
	notifier Notifier
	labels   []*types.Label
}

// NewLabelStore creates an empty label store. Call Refresh to hydrate it.
func NewLabelStore(api *client.Client, undoStack *undo.Stack, counter *SyncCounter, notifier Notifier) *LabelStore {
	return &LabelStore{api: api, undo: undoStack, counter: counter, notifier: notifier}
}

// Refresh replaces local state with the server's label collection.
func (s *LabelStore) Refresh(ctx context.Context) error {
	labels, err := s.api.ListLabels(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.labels = labels
	s.mu.Unlock()
	return nil
}

// List returns the current local collection.
func (s *LabelStore) List() []*types.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Label, len(s.labels))
	copy(out, s.labels)
	return out
}

// Get returns the local label with the given id.
func (s *LabelStore) Get(id string) (*types.Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, label := range s.labels {
		if label.ID == id {
			return label, true
		}
	}
	return nil, false
}

// Create optimistically inserts a provisional label, replaced wholesale by
// the server's canonical object on success.
func (s *LabelStore) Create(ctx context.Context, name, color string) (*types.Label, error) {
	provisional := &types.Label{
		ID:    "local-" + uuid.NewString(),
		Name:  name,
		Color: color,
	}

	s.mu.Lock()
	s.labels = append(s.labels, provisional)
	s.mu.Unlock()
	s.counter.Inc()
	defer s.counter.Dec()

	created, err := s.api.CreateLabel(ctx, name, color)
	if err != nil {
		s.remove(provisional.ID)
		notify(s.notifier, "failed to create label: %v", err)
		return nil, err
	}

	s.replace(provisional.ID, created)
	s.undo.Push(&undo.Entry{
		Action:      undo.ActionCreate,
		Entity:      undo.EntityLabel,
		EntityID:    created.ID,
		Description: fmt.Sprintf("create label %q", created.Name),
	})
	return created, nil
}

// Update applies a partial update optimistically, rolling back on failure.
func (s *LabelStore) Update(ctx context.Context, id string, updates map[string]interface{}) (*types.Label, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("label %s: %w", id, types.ErrNotFound)
	}
	current := s.labels[idx]

	prevFields := make(map[string]interface{}, len(updates))
	for key := range updates {
		prevFields[key] = labelFieldValue(current, key)
	}

	full := *current
	token := rollback{restore: func() {
		s.replace(id, &full)
	}}

	mutated := *current
	for key, value := range updates {
		applyLabelField(&mutated, key, value)
	}
	s.labels[idx] = &mutated
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	canonical, err := s.api.UpdateLabel(ctx, id, updates)
	if err != nil {
		token.restore()
		notify(s.notifier, "failed to update label: %v", err)
		return nil, err
	}

	s.replace(id, canonical)
	s.undo.Push(&undo.Entry{
		Action:         undo.ActionUpdate,
		Entity:         undo.EntityLabel,
		EntityID:       id,
		Description:    fmt.Sprintf("update label %q", canonical.Name),
		PreviousFields: prevFields,
	})
	return canonical, nil
}

// Delete optimistically removes the label, reinserting it on failure.
func (s *LabelStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("label %s: %w", id, types.ErrNotFound)
	}
	snapshot := *s.labels[idx]
	s.labels = append(s.labels[:idx], s.labels[idx+1:]...)
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	if err := s.api.DeleteLabel(ctx, id); err != nil {
		s.insertAt(idx, &snapshot)
		notify(s.notifier, "failed to delete label: %v", err)
		return err
	}

	s.undo.Push(&undo.Entry{
		Action:      undo.ActionDelete,
		Entity:      undo.EntityLabel,
		EntityID:    id,
		Description: fmt.Sprintf("delete label %q", snapshot.Name),
		Snapshot:    &snapshot,
	})
	return nil
}

func labelFieldValue(label *types.Label, key string) interface{} {
	switch key {
	case "name":
		return label.Name
	case "color":
		return label.Color
	}
	return nil
}

func applyLabelField(label *types.Label, key string, value interface{}) {
	v, ok := value.(string)
	if !ok {
		return
	}
	switch key {
	case "name":
		label.Name = v
	case "color":
		label.Color = v
	}
}

func (s *LabelStore) indexOf(id string) int {
	for i, label := range s.labels {
		if label.ID == id {
			return i
		}
	}
	return -1
}

func (s *LabelStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		s.labels = append(s.labels[:idx], s.labels[idx+1:]...)
	}
}

func (s *LabelStore) replace(id string, label *types.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		s.labels[idx] = label
		return
	}
	s.labels = append(s.labels, label)
}

func (s *LabelStore) insertAt(idx int, label *types.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx > len(s.labels) {
		idx = len(s.labels)
	}
	s.labels = append(s.labels[:idx], append([]*types.Label{label}, s.labels[idx:]...)...)
}
