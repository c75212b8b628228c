package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/types"
)

// projectSelect computes the derived issue counts inline so callers always see
// aggregates consistent with the issues table.
const projectSelect = `
	SELECT p.id, p.name, p.color, p.status, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM issues i WHERE i.project_id = p.id),
		(SELECT COUNT(*) FROM issues i WHERE i.project_id = p.id AND i.status = 'done')
	FROM projects p`

// CreateProject inserts a new project.
func (s *SQLiteStorage) CreateProject(ctx context.Context, project *types.Project) (*types.Project, error) {
	if project.Status == "" {
		project.Status = types.ProjectActive
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, color, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project.ID, project.Name, project.Color, project.Status, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return s.GetProject(ctx, project.ID)
}

// GetProject returns a single project with derived counts or types.ErrNotFound.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*types.Project, error) {
	project := &types.Project{}
	err := s.db.QueryRowContext(ctx, projectSelect+` WHERE p.id = ?`, id).Scan(
		&project.ID, &project.Name, &project.Color, &project.Status,
		&project.CreatedAt, &project.UpdatedAt,
		&project.IssueCount, &project.DoneCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListProjects returns all projects with derived counts, ordered by name.
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx, projectSelect+` ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*types.Project
	for rows.Next() {
		project := &types.Project{}
		err := rows.Scan(
			&project.ID, &project.Name, &project.Color, &project.Status,
			&project.CreatedAt, &project.UpdatedAt,
			&project.IssueCount, &project.DoneCount,
		)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject applies a partial update to a project.
func (s *SQLiteStorage) UpdateProject(ctx context.Context, id string, updates map[string]interface{}) (*types.Project, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	for key, value := range updates {
		if !allowedProjectUpdateFields[key] {
			return nil, &types.ValidationError{Field: key, Reason: fmt.Sprintf("invalid field for update: %s", key)}
		}
		switch key {
		case "name":
			if s, ok := value.(string); !ok || s == "" {
				return nil, &types.ValidationError{Field: "name", Reason: "name is required"}
			}
		case "status":
			s, _ := value.(string)
			if !types.ProjectStatus(s).IsValid() {
				return nil, &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %v", value)}
			}
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, normalizeArg(value))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project. Issues referencing it keep their project_id;
// the reference is weak by design.
func (s *SQLiteStorage) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// RestoreProject re-creates a project verbatim; ConflictError if the id is live.
func (s *SQLiteStorage) RestoreProject(ctx context.Context, project *types.Project) (*types.Project, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if project.ID == "" {
		return nil, &types.ValidationError{Field: "id", Reason: "id is required for restore"}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, color, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project.ID, project.Name, project.Color, project.Status, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, &types.ConflictError{Reason: fmt.Sprintf("project %s already exists", project.ID)}
		}
		return nil, fmt.Errorf("failed to restore project: %w", err)
	}
	return s.GetProject(ctx, project.ID)
}
