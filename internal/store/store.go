// Package store holds the client-side canonical stores. Each store applies
// mutations to local state immediately, then reconciles with the server: a
// confirmed mutation is replaced by the server's canonical object and becomes
// undoable, a failed one is rolled back without a trace.
package store

import (
	"fmt"
	"time"

	"github.com/slatehq/slate/internal/types"
)

// Notifier receives user-visible failure messages, e.g. for a toast. A nil
// Notifier silently drops them.
type Notifier func(msg string)

func notify(n Notifier, format string, args ...interface{}) {
	if n != nil {
		n(fmt.Sprintf(format, args...))
	}
}

// rollback is the token returned by an optimistic local apply. Exactly one of
// confirm or restore is called once the network settles.
type rollback struct {
	restore func()
}

func cloneIssue(issue *types.Issue) *types.Issue {
	c := *issue
	c.Labels = append([]types.Label(nil), issue.Labels...)
	c.Attachments = append([]types.Attachment(nil), issue.Attachments...)
	if issue.ProjectID != nil {
		v := *issue.ProjectID
		c.ProjectID = &v
	}
	if issue.ParentID != nil {
		v := *issue.ParentID
		c.ParentID = &v
	}
	if issue.DueDate != nil {
		v := *issue.DueDate
		c.DueDate = &v
	}
	return &c
}

// issueFieldValue reads the current value of an updatable field, used to
// snapshot pre-mutation state for rollback and undo.
func issueFieldValue(issue *types.Issue, key string) interface{} {
	switch key {
	case "title":
		return issue.Title
	case "description":
		return issue.Description
	case "status":
		return string(issue.Status)
	case "priority":
		return string(issue.Priority)
	case "assignee":
		return issue.Assignee
	case "project_id":
		return nullableString(issue.ProjectID)
	case "parent_id":
		return nullableString(issue.ParentID)
	case "due_date":
		if issue.DueDate == nil {
			return nil
		}
		return issue.DueDate.Format(time.RFC3339Nano)
	case "sort_order":
		return issue.SortOrder
	case "label_ids":
		ids := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			ids = append(ids, l.ID)
		}
		return ids
	}
	return nil
}

// applyIssueField writes an update value onto the local copy. Unknown fields
// and label_ids are ignored here: the server is authoritative for the label
// set and rejects unknown fields itself.
func applyIssueField(issue *types.Issue, key string, value interface{}) {
	switch key {
	case "title":
		if v, ok := value.(string); ok {
			issue.Title = v
		}
	case "description":
		if v, ok := value.(string); ok {
			issue.Description = v
		}
	case "status":
		if v, ok := value.(string); ok {
			issue.Status = types.Status(v)
		}
	case "priority":
		if v, ok := value.(string); ok {
			issue.Priority = types.Priority(v)
		}
	case "assignee":
		if v, ok := value.(string); ok {
			issue.Assignee = v
		}
	case "project_id":
		issue.ProjectID = toStringPtr(value)
	case "parent_id":
		issue.ParentID = toStringPtr(value)
	case "due_date":
		issue.DueDate = toTimePtr(value)
	case "sort_order":
		switch v := value.(type) {
		case float64:
			issue.SortOrder = v
		case int:
			issue.SortOrder = float64(v)
		}
	}
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func toStringPtr(value interface{}) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return &v
	case *string:
		return v
	}
	return nil
}

func toTimePtr(value interface{}) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return &v
	case *time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &t
		}
	}
	return nil
}
