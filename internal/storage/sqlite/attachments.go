package sqlite

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/types"
)

// AddAttachment records attachment metadata for an issue. The file itself is
// expected to already sit at StoragePath.
func (s *SQLiteStorage) AddAttachment(ctx context.Context, attachment *types.Attachment) (*types.Attachment, error) {
	if attachment.IssueID == "" {
		return nil, &types.ValidationError{Field: "issue_id", Reason: "issue_id is required"}
	}
	if attachment.Filename == "" {
		return nil, &types.ValidationError{Field: "filename", Reason: "filename is required"}
	}
	if _, err := s.GetIssue(ctx, attachment.IssueID); err != nil {
		return nil, err
	}
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	attachment.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, issue_id, filename, storage_path, mime_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, attachment.ID, attachment.IssueID, attachment.Filename, attachment.StoragePath,
		attachment.MimeType, attachment.Size, attachment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add attachment: %w", err)
	}
	return attachment, nil
}

// ListAttachments returns attachment rows for an issue in creation order.
func (s *SQLiteStorage) ListAttachments(ctx context.Context, issueID string) ([]*types.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, filename, storage_path, mime_type, size, created_at
		FROM attachments WHERE issue_id = ?
		ORDER BY created_at ASC, id ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attachments []*types.Attachment
	for rows.Next() {
		a := &types.Attachment{}
		err := rows.Scan(&a.ID, &a.IssueID, &a.Filename, &a.StoragePath, &a.MimeType, &a.Size, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// DeleteAttachment removes the metadata row, then unlinks the file
// best-effort: the row removal succeeds even if the physical file is gone or
// unremovable.
func (s *SQLiteStorage) DeleteAttachment(ctx context.Context, id string) error {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT storage_path FROM attachments WHERE id = ?`, id).Scan(&path)
	if err != nil {
		return fmt.Errorf("attachment %s: %w", id, types.ErrNotFound)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	_ = os.Remove(path)
	return nil
}

// attachmentPaths collects storage paths for an issue's attachments so a
// cascading issue delete can unlink them after the rows are gone.
func (s *SQLiteStorage) attachmentPaths(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT storage_path FROM attachments WHERE issue_id = ?`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, rows.Err()
}
