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

// ProjectStore is the canonical client-side project collection.
type ProjectStore struct {
	mu       sync.Mutex
	api      *client.Client
	undo     *undo.Stack
	counter  *SyncCounter
	notifier Notifier
	projects []*types.Project
}

// NewProjectStore creates an empty project store. Call Refresh to hydrate it.
func NewProjectStore(api *client.Client, undoStack *undo.Stack, counter *SyncCounter, notifier Notifier) *ProjectStore {
	return &ProjectStore{api: api, undo: undoStack, counter: counter, notifier: notifier}
}

// Refresh replaces local state with the server's project collection.
func (s *ProjectStore) Refresh(ctx context.Context) error {
	projects, err := s.api.ListProjects(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.projects = projects
	s.mu.Unlock()
	return nil
}

// List returns the current local collection.
func (s *ProjectStore) List() []*types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

// Get returns the local project with the given id.
func (s *ProjectStore) Get(id string) (*types.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, project := range s.projects {
		if project.ID == id {
			return project, true
		}
	}
	return nil, false
}

// Create optimistically inserts a provisional project, replaced wholesale by
// the server's canonical object on success.
func (s *ProjectStore) Create(ctx context.Context, name, color string) (*types.Project, error) {
	now := time.Now()
	provisional := &types.Project{
		ID:        "local-" + uuid.NewString(),
		Name:      name,
		Color:     color,
		Status:    types.ProjectActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.projects = append(s.projects, provisional)
	s.mu.Unlock()
	s.counter.Inc()
	defer s.counter.Dec()

	created, err := s.api.CreateProject(ctx, name, color)
	if err != nil {
		s.remove(provisional.ID)
		notify(s.notifier, "failed to create project: %v", err)
		return nil, err
	}

	s.replace(provisional.ID, created)
	s.undo.Push(&undo.Entry{
		Action:      undo.ActionCreate,
		Entity:      undo.EntityProject,
		EntityID:    created.ID,
		Description: fmt.Sprintf("create project %q", created.Name),
	})
	return created, nil
}

// Update applies a partial update optimistically, rolling back on failure.
func (s *ProjectStore) Update(ctx context.Context, id string, updates map[string]interface{}) (*types.Project, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	current := s.projects[idx]

	prevFields := make(map[string]interface{}, len(updates))
	for key := range updates {
		prevFields[key] = projectFieldValue(current, key)
	}

	full := *current
	token := rollback{restore: func() {
		s.replace(id, &full)
	}}

	mutated := *current
	for key, value := range updates {
		applyProjectField(&mutated, key, value)
	}
	mutated.UpdatedAt = time.Now()
	s.projects[idx] = &mutated
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	canonical, err := s.api.UpdateProject(ctx, id, updates)
	if err != nil {
		token.restore()
		notify(s.notifier, "failed to update project: %v", err)
		return nil, err
	}

	s.replace(id, canonical)
	s.undo.Push(&undo.Entry{
		Action:         undo.ActionUpdate,
		Entity:         undo.EntityProject,
		EntityID:       id,
		Description:    fmt.Sprintf("update project %q", canonical.Name),
		PreviousFields: prevFields,
	})
	return canonical, nil
}

// Delete optimistically removes the project, reinserting it on failure.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	snapshot := *s.projects[idx]
	s.projects = append(s.projects[:idx], s.projects[idx+1:]...)
	s.mu.Unlock()

	s.counter.Inc()
	defer s.counter.Dec()

	if err := s.api.DeleteProject(ctx, id); err != nil {
		s.insertAt(idx, &snapshot)
		notify(s.notifier, "failed to delete project: %v", err)
		return err
	}

	s.undo.Push(&undo.Entry{
		Action:      undo.ActionDelete,
		Entity:      undo.EntityProject,
		EntityID:    id,
		Description: fmt.Sprintf("delete project %q", snapshot.Name),
		Snapshot:    &snapshot,
	})
	return nil
}

func projectFieldValue(project *types.Project, key string) interface{} {
	switch key {
	case "name":
		return project.Name
	case "color":
		return project.Color
	case "status":
		return string(project.Status)
	}
	return nil
}

func applyProjectField(project *types.Project, key string, value interface{}) {
	v, ok := value.(string)
	if !ok {
		return
	}
	switch key {
	case "name":
		project.Name = v
	case "color":
		project.Color = v
	case "status":
		project.Status = types.ProjectStatus(v)
	}
}

func (s *ProjectStore) indexOf(id string) int {
	for i, project := range s.projects {
		if project.ID == id {
			return i
		}
	}
	return -1
}

func (s *ProjectStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		s.projects = append(s.projects[:idx], s.projects[idx+1:]...)
	}
}

func (s *ProjectStore) replace(id string, project *types.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		s.projects[idx] = project
		return
	}
	s.projects = append(s.projects, project)
}

func (s *ProjectStore) insertAt(idx int, project *types.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx > len(s.projects) {
		idx = len(s.projects)
	}
	s.projects = append(s.projects[:idx], append([]*types.Project{project}, s.projects[idx:]...)...)
}
