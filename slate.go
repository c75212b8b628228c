// Package slate provides a minimal public API for embedding the slate client
// in Go programs, e.g. a desktop or TUI frontend.
//
// It exports the core entity types and a Session that bundles the typed HTTP
// client, the optimistic canonical stores, the undo stack, and the sync
// counter into one ready-to-use unit.
package slate

import (
	"github.com/slatehq/slate/internal/client"
	"github.com/slatehq/slate/internal/storage"
	"github.com/slatehq/slate/internal/storage/sqlite"
	"github.com/slatehq/slate/internal/store"
	"github.com/slatehq/slate/internal/types"
	"github.com/slatehq/slate/internal/undo"
)

// Core entity types
type (
	Issue        = types.Issue
	Project      = types.Project
	Label        = types.Label
	Comment      = types.Comment
	Attachment   = types.Attachment
	SearchResult = types.SearchResult
	Status       = types.Status
	Priority     = types.Priority
)

// Status constants
const (
	StatusBacklog    = types.StatusBacklog
	StatusTodo       = types.StatusTodo
	StatusInProgress = types.StatusInProgress
	StatusDone       = types.StatusDone
	StatusCancelled  = types.StatusCancelled
)

// Priority constants
const (
	PriorityUrgent = types.PriorityUrgent
	PriorityHigh   = types.PriorityHigh
	PriorityMedium = types.PriorityMedium
	PriorityLow    = types.PriorityLow
	PriorityNone   = types.PriorityNone
)

// Client is the typed HTTP client for a slated server.
type Client = client.Client

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return client.New(baseURL)
}

// Storage is the server-side storage interface, exported for programs that
// embed the storage layer directly instead of talking to a server.
type Storage = storage.Storage

// NewSQLiteStorage opens a slate SQLite database for direct access.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	return sqlite.New(dbPath)
}

// Session bundles everything a UI needs: canonical stores that apply
// mutations optimistically, an undo stack of confirmed mutations, an executor
// to reverse them, and a counter tracking in-flight syncs.
type Session struct {
	Client   *Client
	Issues   *store.IssueStore
	Projects *store.ProjectStore
	Labels   *store.LabelStore
	Comments *store.CommentStore
	Undo     *undo.Stack
	Executor *store.Executor
	Sync     *store.SyncCounter
}

// SessionOptions customizes a Session's callbacks.
type SessionOptions struct {
	// OnFailure receives user-visible failure messages (rollbacks, failed
	// undos). Optional.
	OnFailure func(msg string)
	// OnSyncChange is invoked with the in-flight operation count whenever it
	// changes. Optional.
	OnSyncChange func(inFlight int)
}

// NewSession wires a full client-side session against the server at baseURL.
func NewSession(baseURL string, opts SessionOptions) *Session {
	api := client.New(baseURL)
	stack := undo.NewStack()
	counter := store.NewSyncCounter(opts.OnSyncChange)
	notifier := store.Notifier(opts.OnFailure)

	issues := store.NewIssueStore(api, stack, counter, notifier)
	projects := store.NewProjectStore(api, stack, counter, notifier)
	labels := store.NewLabelStore(api, stack, counter, notifier)
	comments := store.NewCommentStore(api, stack, counter, notifier)

	return &Session{
		Client:   api,
		Issues:   issues,
		Projects: projects,
		Labels:   labels,
		Comments: comments,
		Undo:     stack,
		Executor: store.NewExecutor(api, stack, issues, projects, labels, comments, notifier),
		Sync:     counter,
	}
}
