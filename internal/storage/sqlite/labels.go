package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/types"
)

// CreateLabel inserts a new label. Names are unique; a duplicate name is a
// ConflictError.
func (s *SQLiteStorage) CreateLabel(ctx context.Context, label *types.Label) (*types.Label, error) {
	if err := label.Validate(); err != nil {
		return nil, err
	}
	if label.ID == "" {
		label.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labels (id, name, color) VALUES (?, ?, ?)
	`, label.ID, label.Name, label.Color)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, &types.ConflictError{Reason: fmt.Sprintf("label %q already exists", label.Name)}
		}
		return nil, fmt.Errorf("failed to create label: %w", err)
	}
	return s.GetLabel(ctx, label.ID)
}

// GetLabel returns a single label or types.ErrNotFound.
func (s *SQLiteStorage) GetLabel(ctx context.Context, id string) (*types.Label, error) {
	label := &types.Label{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, color FROM labels WHERE id = ?
	`, id).Scan(&label.ID, &label.Name, &label.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("label %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}
	return label, nil
}

// ListLabels returns all labels ordered by name.
func (s *SQLiteStorage) ListLabels(ctx context.Context) ([]*types.Label, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM labels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var labels []*types.Label
	for rows.Next() {
		label := &types.Label{}
		if err := rows.Scan(&label.ID, &label.Name, &label.Color); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// UpdateLabel applies a partial update to a label.
func (s *SQLiteStorage) UpdateLabel(ctx context.Context, id string, updates map[string]interface{}) (*types.Label, error) {
	if _, err := s.GetLabel(ctx, id); err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []interface{}{}
	for key, value := range updates {
		if !allowedLabelUpdateFields[key] {
			return nil, &types.ValidationError{Field: key, Reason: fmt.Sprintf("invalid field for update: %s", key)}
		}
		if key == "name" {
			if s, ok := value.(string); !ok || s == "" {
				return nil, &types.ValidationError{Field: "name", Reason: "name is required"}
			}
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, normalizeArg(value))
	}
	if len(setClauses) == 0 {
		return s.GetLabel(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE labels SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintErr(err) {
			return nil, &types.ConflictError{Reason: "label name already exists"}
		}
		return nil, fmt.Errorf("failed to update label: %w", err)
	}
	return s.GetLabel(ctx, id)
}

// DeleteLabel removes a label; association rows cascade.
func (s *SQLiteStorage) DeleteLabel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("label %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// RestoreLabel re-creates a label with its original id; ConflictError if the
// id or name is already live.
func (s *SQLiteStorage) RestoreLabel(ctx context.Context, label *types.Label) (*types.Label, error) {
	if err := label.Validate(); err != nil {
		return nil, err
	}
	if label.ID == "" {
		return nil, &types.ValidationError{Field: "id", Reason: "id is required for restore"}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labels (id, name, color) VALUES (?, ?, ?)
	`, label.ID, label.Name, label.Color)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, &types.ConflictError{Reason: fmt.Sprintf("label %s already exists", label.ID)}
		}
		return nil, fmt.Errorf("failed to restore label: %w", err)
	}
	return s.GetLabel(ctx, label.ID)
}

// labelsForIssue returns the label set attached to an issue, ordered by name.
func (s *SQLiteStorage) labelsForIssue(ctx context.Context, issueID string) ([]types.Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.name, l.color
		FROM labels l
		JOIN issue_labels il ON il.label_id = l.id
		WHERE il.issue_id = ?
		ORDER BY l.name
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var labels []types.Label
	for rows.Next() {
		var label types.Label
		if err := rows.Scan(&label.ID, &label.Name, &label.Color); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
