// Package storage defines the interface for tracker storage backends.
package storage

import (
	"context"
	"database/sql"

	"github.com/slatehq/slate/internal/types"
)

// Storage defines the interface for tracker storage backends.
//
// Mutations return the canonical post-mutation entity: the server is
// authoritative for derived fields (assigned number, recomputed counts,
// final label set).
type Storage interface {
	// Issues
	CreateIssue(ctx context.Context, issue *types.Issue, labelIDs []string) (*types.Issue, error)
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
	ListIssues(ctx context.Context) ([]*types.Issue, error)
	UpdateIssue(ctx context.Context, id string, updates map[string]interface{}) (*types.Issue, error)
	DeleteIssue(ctx context.Context, id string) error
	RestoreIssue(ctx context.Context, issue *types.Issue, labelIDs []string) (*types.Issue, error)
	BatchUpdateIssues(ctx context.Context, ids []string, updates map[string]interface{}) ([]*types.Issue, error)
	BatchDeleteIssues(ctx context.Context, ids []string) (int, error)
	SearchIssues(ctx context.Context, query string, limit int) ([]*types.SearchResult, error)

	// Projects
	CreateProject(ctx context.Context, project *types.Project) (*types.Project, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	UpdateProject(ctx context.Context, id string, updates map[string]interface{}) (*types.Project, error)
	DeleteProject(ctx context.Context, id string) error
	RestoreProject(ctx context.Context, project *types.Project) (*types.Project, error)

	// Labels
	CreateLabel(ctx context.Context, label *types.Label) (*types.Label, error)
	GetLabel(ctx context.Context, id string) (*types.Label, error)
	ListLabels(ctx context.Context) ([]*types.Label, error)
	UpdateLabel(ctx context.Context, id string, updates map[string]interface{}) (*types.Label, error)
	DeleteLabel(ctx context.Context, id string) error
	RestoreLabel(ctx context.Context, label *types.Label) (*types.Label, error)

	// Comments (issue-scoped; cascade-deleted with the issue)
	CreateComment(ctx context.Context, comment *types.Comment) (*types.Comment, error)
	GetComment(ctx context.Context, id string) (*types.Comment, error)
	ListComments(ctx context.Context, issueID string) ([]*types.Comment, error)
	UpdateComment(ctx context.Context, id string, updates map[string]interface{}) (*types.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	RestoreComment(ctx context.Context, comment *types.Comment) (*types.Comment, error)

	// Attachments
	AddAttachment(ctx context.Context, attachment *types.Attachment) (*types.Attachment, error)
	ListAttachments(ctx context.Context, issueID string) ([]*types.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	// Lifecycle
	Close() error

	// Database path (for diagnostics)
	Path() string

	// UnderlyingDB returns the underlying *sql.DB connection.
	// WARNING: Direct database access bypasses the storage layer. Use with caution.
	UnderlyingDB() *sql.DB
}
