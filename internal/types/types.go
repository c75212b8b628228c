// Package types defines the core entities shared by the client and the server.
package types

import (
	"fmt"
	"time"
)

// Issue represents a trackable work item
type Issue struct {
	ID           string       `json:"id"`
	Number       int          `json:"number"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       Status       `json:"status"`
	Priority     Priority     `json:"priority"`
	Assignee     string       `json:"assignee,omitempty"`
	ProjectID    *string      `json:"project_id,omitempty"`
	ParentID     *string      `json:"parent_id,omitempty"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	SortOrder    float64      `json:"sort_order"`
	Labels       []Label      `json:"labels,omitempty"`
	CommentCount int          `json:"comment_count"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate checks if the issue has valid field values
func (i *Issue) Validate() error {
	if len(i.Title) == 0 {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(i.Title) > 500 {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("title must be 500 characters or less (got %d)", len(i.Title))}
	}
	if !i.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", i.Status)}
	}
	if !i.Priority.IsValid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("invalid priority: %s", i.Priority)}
	}
	if i.ParentID != nil && i.ID != "" && *i.ParentID == i.ID {
		return &InvariantViolation{Reason: "issue cannot be its own parent"}
	}
	return nil
}

// Status represents the current state of an issue
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Priority represents the urgency of an issue
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	}
	return false
}

// Project groups issues and tracks aggregate progress
type Project struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Color      string        `json:"color,omitempty"`
	Status     ProjectStatus `json:"status"`
	IssueCount int           `json:"issue_count"`
	DoneCount  int           `json:"done_count"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Validate checks if the project has valid field values
func (p *Project) Validate() error {
	if len(p.Name) == 0 {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if !p.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", p.Status)}
	}
	return nil
}

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
)

// IsValid checks if the project status value is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectActive, ProjectPaused, ProjectCompleted:
		return true
	}
	return false
}

// Label is a named tag attachable to issues. Names are unique.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Validate checks if the label has valid field values
func (l *Label) Validate() error {
	if len(l.Name) == 0 {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	return nil
}

// Comment is a note on an issue. Its lifecycle is bound to the issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the comment has valid field values
func (c *Comment) Validate() error {
	if len(c.Content) == 0 {
		return &ValidationError{Field: "content", Reason: "content is required"}
	}
	if len(c.IssueID) == 0 {
		return &ValidationError{Field: "issue_id", Reason: "issue_id is required"}
	}
	return nil
}

// Attachment is a file record owned by an issue. Only metadata lives here;
// the bytes sit at StoragePath and their removal is best-effort.
type Attachment struct {
	ID          string    `json:"id"`
	IssueID     string    `json:"issue_id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	MimeType    string    `json:"mime_type,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is one hit from the issue search index
type SearchResult struct {
	Issue          *Issue  `json:"issue"`
	TitleSnippet   string  `json:"title_snippet,omitempty"`
	DescSnippet    string  `json:"description_snippet,omitempty"`
	Rank           float64 `json:"rank"`
	SubstringMatch bool    `json:"substring_match,omitempty"`
}
