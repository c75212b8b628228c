package sqlite

import (
	"fmt"
	"time"

	"github.com/slatehq/slate/internal/types"
)

// allowedIssueUpdateFields whitelists column names for partial issue updates.
// label_ids is not a column; it is handled as a transactional set replacement.
var allowedIssueUpdateFields = map[string]bool{
	"title":       true,
	"description": true,
	"status":      true,
	"priority":    true,
	"assignee":    true,
	"project_id":  true,
	"parent_id":   true,
	"due_date":    true,
	"sort_order":  true,
}

var allowedProjectUpdateFields = map[string]bool{
	"name":   true,
	"color":  true,
	"status": true,
}

var allowedLabelUpdateFields = map[string]bool{
	"name":  true,
	"color": true,
}

var allowedCommentUpdateFields = map[string]bool{
	"content": true,
}

// validateIssueField checks the value of a single issue update field.
func validateIssueField(key string, value interface{}) error {
	switch key {
	case "title":
		s, ok := value.(string)
		if !ok || s == "" {
			return &types.ValidationError{Field: "title", Reason: "title is required"}
		}
		if len(s) > 500 {
			return &types.ValidationError{Field: "title", Reason: fmt.Sprintf("title must be 500 characters or less (got %d)", len(s))}
		}
	case "status":
		s, _ := value.(string)
		if !types.Status(s).IsValid() {
			return &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %v", value)}
		}
	case "priority":
		s, _ := value.(string)
		if !types.Priority(s).IsValid() {
			return &types.ValidationError{Field: "priority", Reason: fmt.Sprintf("invalid priority: %v", value)}
		}
	case "description", "assignee":
		if _, ok := value.(string); !ok && value != nil {
			return &types.ValidationError{Field: key, Reason: fmt.Sprintf("%s must be a string", key)}
		}
	case "project_id", "parent_id":
		switch value.(type) {
		case string, *string, nil:
		default:
			return &types.ValidationError{Field: key, Reason: fmt.Sprintf("%s must be a string or null", key)}
		}
	case "due_date":
		switch v := value.(type) {
		case time.Time, *time.Time, nil:
		case string:
			// JSON updates carry timestamps as RFC 3339 strings.
			if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
				return &types.ValidationError{Field: key, Reason: "due_date must be an RFC 3339 timestamp or null"}
			}
		default:
			return &types.ValidationError{Field: key, Reason: "due_date must be a timestamp or null"}
		}
	case "sort_order":
		switch value.(type) {
		case float64, int, int64:
		default:
			return &types.ValidationError{Field: key, Reason: "sort_order must be a number"}
		}
	}
	return nil
}
