package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/types"
)

const issueColumns = `id, number, title, description, status, priority, assignee,
	project_id, parent_id, due_date, sort_order, created_at, updated_at`

// CreateIssue inserts a new issue and allocates its number from the shared
// counter inside one IMMEDIATE transaction. Number assignment and the insert
// must be atomic so concurrent creates never observe or assign the same number.
func (s *SQLiteStorage) CreateIssue(ctx context.Context, issue *types.Issue, labelIDs []string) (*types.Issue, error) {
	if issue.Status == "" {
		issue.Status = types.StatusBacklog
	}
	if issue.Priority == "" {
		issue.Priority = types.PriorityNone
	}
	if err := issue.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}

	conn, finish, err := s.beginImmediate(ctx)
	if err != nil {
		return nil, err
	}
	defer finish()

	if issue.ParentID != nil {
		if err := validateParent(ctx, conn, issue.ID, *issue.ParentID); err != nil {
			return nil, err
		}
	}

	// Bump the counter and read back the new value as this issue's number.
	var number int
	err = conn.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`, counterIssueNumber).Scan(&number)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate issue number: %w", err)
	}
	issue.Number = number

	_, err = conn.ExecContext(ctx, `
		INSERT INTO issues (
			id, number, title, description, status, priority, assignee,
			project_id, parent_id, due_date, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		issue.ID, issue.Number, issue.Title, issue.Description, issue.Status,
		issue.Priority, issue.Assignee, issue.ProjectID, issue.ParentID,
		issue.DueDate, issue.SortOrder, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert issue: %w", err)
	}

	if err := insertIssueLabels(ctx, conn, issue.ID, labelIDs); err != nil {
		return nil, err
	}

	if err := commit(ctx, conn); err != nil {
		return nil, err
	}

	return s.GetIssue(ctx, issue.ID)
}

// GetIssue returns a single issue with its labels, attachments and derived
// comment count, or types.ErrNotFound.
func (s *SQLiteStorage) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+issueColumns+`,
			(SELECT COUNT(*) FROM comments c WHERE c.issue_id = issues.id)
		FROM issues WHERE id = ?
	`, id)

	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	if err := s.attachIssueRelations(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// ListIssues returns all issues with labels and derived counts, ordered by
// sort order then number.
func (s *SQLiteStorage) ListIssues(ctx context.Context) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumns+`,
			(SELECT COUNT(*) FROM comments c WHERE c.issue_id = issues.id)
		FROM issues
		ORDER BY sort_order ASC, number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues, err := scanIssues(rows)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		if err := s.attachIssueRelations(ctx, issue); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

// UpdateIssue applies a field-level partial update. When updates contains
// "label_ids" the full label set is replaced transactionally: delete all
// associations, then insert the selected ones, so a failure never leaves a
// partial label state. Hierarchy invariants are validated before any write.
func (s *SQLiteStorage) UpdateIssue(ctx context.Context, id string, updates map[string]interface{}) (*types.Issue, error) {
	if _, err := s.GetIssue(ctx, id); err != nil {
		return nil, err
	}

	var err error
	var labelIDs []string
	replaceLabels := false
	if raw, ok := updates["label_ids"]; ok {
		labelIDs, err = toStringSlice(raw)
		if err != nil {
			return nil, &types.ValidationError{Field: "label_ids", Reason: "label_ids must be a list of strings"}
		}
		replaceLabels = true
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	for key, value := range updates {
		if key == "label_ids" {
			continue
		}
		// Prevent SQL injection by validating field names
		if !allowedIssueUpdateFields[key] {
			return nil, &types.ValidationError{Field: key, Reason: fmt.Sprintf("invalid field for update: %s", key)}
		}
		if err := validateIssueField(key, value); err != nil {
			return nil, err
		}
		if key == "due_date" {
			value = toNullableTime(value)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, normalizeArg(value))
	}
	args = append(args, id)

	conn, finish, err := s.beginImmediate(ctx)
	if err != nil {
		return nil, err
	}
	defer finish()

	if raw, ok := updates["parent_id"]; ok {
		if parentID := toNullableString(raw); parentID != nil {
			if err := validateParent(ctx, conn, id, *parentID); err != nil {
				return nil, err
			}
		}
	}

	query := fmt.Sprintf("UPDATE issues SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}

	if replaceLabels {
		if _, err := conn.ExecContext(ctx, `DELETE FROM issue_labels WHERE issue_id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to clear labels: %w", err)
		}
		if err := insertIssueLabels(ctx, conn, id, labelIDs); err != nil {
			return nil, err
		}
	}

	if err := commit(ctx, conn); err != nil {
		return nil, err
	}

	return s.GetIssue(ctx, id)
}

// validateParent enforces the single-level hierarchy rules before mutation.
func validateParent(ctx context.Context, conn *sql.Conn, issueID, parentID string) error {
	if parentID == issueID {
		return &types.InvariantViolation{Reason: "issue cannot be its own parent"}
	}

	var parentParent sql.NullString
	err := conn.QueryRowContext(ctx, `SELECT parent_id FROM issues WHERE id = ?`, parentID).Scan(&parentParent)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.ValidationError{Field: "parent_id", Reason: fmt.Sprintf("parent issue %s not found", parentID)}
	}
	if err != nil {
		return fmt.Errorf("failed to check parent: %w", err)
	}
	if parentParent.Valid {
		return &types.InvariantViolation{Reason: "cannot nest more than one level deep"}
	}

	var childCount int
	err = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE parent_id = ?`, issueID).Scan(&childCount)
	if err != nil {
		return fmt.Errorf("failed to check children: %w", err)
	}
	if childCount > 0 {
		return &types.InvariantViolation{Reason: "issue with sub-issues cannot become a sub-issue"}
	}
	return nil
}

// DeleteIssue hard-deletes an issue. Label associations, comments and
// attachment rows cascade via referential constraints; children keep their
// now-dangling parent_id on purpose. Physical attachment files are removed
// best-effort after the row delete commits.
func (s *SQLiteStorage) DeleteIssue(ctx context.Context, id string) error {
	paths, err := s.attachmentPaths(ctx, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
	}

	// Row removal already succeeded; a failed unlink is deliberately ignored.
	for _, p := range paths {
		_ = os.Remove(p)
	}
	return nil
}

// RestoreIssue re-creates a fully-specified issue verbatim, bypassing counter
// allocation, and re-attaches its label associations. Returns a ConflictError
// if the id already exists (idempotency guard against double-undo).
func (s *SQLiteStorage) RestoreIssue(ctx context.Context, issue *types.Issue, labelIDs []string) (*types.Issue, error) {
	if err := issue.Validate(); err != nil {
		return nil, err
	}
	if issue.ID == "" {
		return nil, &types.ValidationError{Field: "id", Reason: "id is required for restore"}
	}

	conn, finish, err := s.beginImmediate(ctx)
	if err != nil {
		return nil, err
	}
	defer finish()

	var exists int
	err = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE id = ?`, issue.ID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing issue: %w", err)
	}
	if exists > 0 {
		return nil, &types.ConflictError{Reason: fmt.Sprintf("issue %s already exists", issue.ID)}
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO issues (
			id, number, title, description, status, priority, assignee,
			project_id, parent_id, due_date, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		issue.ID, issue.Number, issue.Title, issue.Description, issue.Status,
		issue.Priority, issue.Assignee, issue.ProjectID, issue.ParentID,
		issue.DueDate, issue.SortOrder, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to restore issue: %w", err)
	}

	if err := insertIssueLabels(ctx, conn, issue.ID, labelIDs); err != nil {
		return nil, err
	}

	if err := commit(ctx, conn); err != nil {
		return nil, err
	}

	return s.GetIssue(ctx, issue.ID)
}

// BatchUpdateIssues applies one update payload to every issue in ids with a
// single statement. Ids matching no row are silently ignored: the operation is
// defined over issues in the id set that still exist.
func (s *SQLiteStorage) BatchUpdateIssues(ctx context.Context, ids []string, updates map[string]interface{}) ([]*types.Issue, error) {
	if len(ids) == 0 {
		return nil, &types.ValidationError{Field: "issue_ids", Reason: "issue_ids must not be empty"}
	}
	if len(updates) == 0 {
		return nil, &types.ValidationError{Field: "updates", Reason: "updates must not be empty"}
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	for key, value := range updates {
		if key == "label_ids" {
			return nil, &types.ValidationError{Field: "label_ids", Reason: "label replacement is not supported in batch updates"}
		}
		if !allowedIssueUpdateFields[key] {
			return nil, &types.ValidationError{Field: key, Reason: fmt.Sprintf("invalid field for update: %s", key)}
		}
		if key == "parent_id" {
			return nil, &types.ValidationError{Field: "parent_id", Reason: "parent changes are not supported in batch updates"}
		}
		if err := validateIssueField(key, value); err != nil {
			return nil, err
		}
		if key == "due_date" {
			value = toNullableTime(value)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, normalizeArg(value))
	}

	inClause, inArgs := placeholders(ids)
	args = append(args, inArgs...)

	query := fmt.Sprintf("UPDATE issues SET %s WHERE id IN (%s)", strings.Join(setClauses, ", "), inClause)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to batch update issues: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+issueColumns+`,
			(SELECT COUNT(*) FROM comments c WHERE c.issue_id = issues.id)
		FROM issues WHERE id IN (%s)
		ORDER BY number ASC
	`, inClause), inArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to read back batch update: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues, err := scanIssues(rows)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		if err := s.attachIssueRelations(ctx, issue); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

// BatchDeleteIssues deletes every issue in ids with one statement and returns
// the number of rows removed. Missing ids are silently ignored.
func (s *SQLiteStorage) BatchDeleteIssues(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, &types.ValidationError{Field: "issue_ids", Reason: "issue_ids must not be empty"}
	}

	var paths []string
	for _, id := range ids {
		p, err := s.attachmentPaths(ctx, id)
		if err != nil {
			return 0, err
		}
		paths = append(paths, p...)
	}

	inClause, inArgs := placeholders(ids)
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM issues WHERE id IN (%s)`, inClause), inArgs...)
	if err != nil {
		return 0, fmt.Errorf("failed to batch delete issues: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}

	for _, p := range paths {
		_ = os.Remove(p)
	}
	return int(n), nil
}

// attachIssueRelations loads the label set and attachment rows for an issue.
func (s *SQLiteStorage) attachIssueRelations(ctx context.Context, issue *types.Issue) error {
	labels, err := s.labelsForIssue(ctx, issue.ID)
	if err != nil {
		return err
	}
	issue.Labels = labels

	attachments, err := s.ListAttachments(ctx, issue.ID)
	if err != nil {
		return err
	}
	issue.Attachments = nil
	for _, a := range attachments {
		issue.Attachments = append(issue.Attachments, *a)
	}
	return nil
}

// insertIssueLabels inserts association rows for each label id.
func insertIssueLabels(ctx context.Context, conn *sql.Conn, issueID string, labelIDs []string) error {
	for _, labelID := range labelIDs {
		if labelID == "" {
			continue
		}
		_, err := conn.ExecContext(ctx, `
			INSERT OR IGNORE INTO issue_labels (issue_id, label_id) VALUES (?, ?)
		`, issueID, labelID)
		if err != nil {
			return fmt.Errorf("failed to attach label %s: %w", labelID, err)
		}
	}
	return nil
}

func scanIssue(row *sql.Row) (*types.Issue, error) {
	issue := &types.Issue{}
	err := row.Scan(
		&issue.ID, &issue.Number, &issue.Title, &issue.Description,
		&issue.Status, &issue.Priority, &issue.Assignee, &issue.ProjectID,
		&issue.ParentID, &issue.DueDate, &issue.SortOrder,
		&issue.CreatedAt, &issue.UpdatedAt, &issue.CommentCount,
	)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func scanIssues(rows *sql.Rows) ([]*types.Issue, error) {
	var issues []*types.Issue
	for rows.Next() {
		issue := &types.Issue{}
		err := rows.Scan(
			&issue.ID, &issue.Number, &issue.Title, &issue.Description,
			&issue.Status, &issue.Priority, &issue.Assignee, &issue.ProjectID,
			&issue.ParentID, &issue.DueDate, &issue.SortOrder,
			&issue.CreatedAt, &issue.UpdatedAt, &issue.CommentCount,
		)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}
