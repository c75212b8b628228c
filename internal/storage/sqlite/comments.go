package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/types"
)

// CreateComment inserts a comment on an issue. The owning issue must exist;
// the FK makes a missing issue surface as a constraint failure, which we map
// to NotFound up front for a cleaner message.
func (s *SQLiteStorage) CreateComment(ctx context.Context, comment *types.Comment) (*types.Comment, error) {
	if err := comment.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetIssue(ctx, comment.IssueID); err != nil {
		return nil, err
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, issue_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, comment.ID, comment.IssueID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return s.GetComment(ctx, comment.ID)
}

// GetComment returns a single comment or types.ErrNotFound.
func (s *SQLiteStorage) GetComment(ctx context.Context, id string) (*types.Comment, error) {
	comment := &types.Comment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, issue_id, content, created_at, updated_at FROM comments WHERE id = ?
	`, id).Scan(&comment.ID, &comment.IssueID, &comment.Content, &comment.CreatedAt, &comment.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// ListComments returns all comments on an issue in creation order.
func (s *SQLiteStorage) ListComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, content, created_at, updated_at
		FROM comments WHERE issue_id = ?
		ORDER BY created_at ASC, id ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*types.Comment
	for rows.Next() {
		comment := &types.Comment{}
		err := rows.Scan(&comment.ID, &comment.IssueID, &comment.Content, &comment.CreatedAt, &comment.UpdatedAt)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// UpdateComment applies a partial update to a comment.
func (s *SQLiteStorage) UpdateComment(ctx context.Context, id string, updates map[string]interface{}) (*types.Comment, error) {
	if _, err := s.GetComment(ctx, id); err != nil {
		return nil, err
	}

	content, ok := updates["content"]
	if !ok {
		return s.GetComment(ctx, id)
	}
	for key := range updates {
		if !allowedCommentUpdateFields[key] {
			return nil, &types.ValidationError{Field: key, Reason: fmt.Sprintf("invalid field for update: %s", key)}
		}
	}
	text, ok := content.(string)
	if !ok || text == "" {
		return nil, &types.ValidationError{Field: "content", Reason: "content is required"}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE comments SET content = ?, updated_at = ? WHERE id = ?
	`, text, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return s.GetComment(ctx, id)
}

// DeleteComment removes a comment.
func (s *SQLiteStorage) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("comment %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// RestoreComment re-creates a comment verbatim; ConflictError if the id is
// live. The owning issue must still exist.
func (s *SQLiteStorage) RestoreComment(ctx context.Context, comment *types.Comment) (*types.Comment, error) {
	if err := comment.Validate(); err != nil {
		return nil, err
	}
	if comment.ID == "" {
		return nil, &types.ValidationError{Field: "id", Reason: "id is required for restore"}
	}
	if _, err := s.GetIssue(ctx, comment.IssueID); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, issue_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, comment.ID, comment.IssueID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return nil, &types.ConflictError{Reason: fmt.Sprintf("comment %s already exists", comment.ID)}
		}
		return nil, fmt.Errorf("failed to restore comment: %w", err)
	}
	return s.GetComment(ctx, comment.ID)
}
