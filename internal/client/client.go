// Package client is the typed HTTP client for the slate mutation service. It
// is the only way the CLI and the stores talk to the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/slatehq/slate/internal/types"
)

const versionHeader = "X-Slate-Version"

// Version is the client version sent on every request. Kept in lockstep with
// the server version by the release process.
var Version = "0.9.2"

// Error is a failed API call. Message carries the server's error text.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.StatusCode == http.StatusConflict
}

// Client talks to a slate server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a client with a caller-supplied http.Client,
// mainly for tests.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(versionHeader, Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if err := checkServerVersion(resp.Header.Get(versionHeader)); err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkServerVersion rejects responses from a server on a different major
// version. An absent header is tolerated for proxies that strip headers.
func checkServerVersion(serverVersion string) error {
	if serverVersion == "" {
		return nil
	}
	srv := "v" + serverVersion
	cli := "v" + Version
	if !semver.IsValid(srv) || semver.Major(srv) != semver.Major(cli) {
		return fmt.Errorf("server version %s is incompatible with client version %s", serverVersion, Version)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	if payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	return &Error{StatusCode: resp.StatusCode, Message: payload.Error}
}

// Health checks connectivity and returns the server version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// CreateIssueRequest is the payload for CreateIssue.
type CreateIssueRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	ParentID    *string    `json:"parent_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SortOrder   float64    `json:"sort_order,omitempty"`
	LabelIDs    []string   `json:"label_ids,omitempty"`
}

func (c *Client) CreateIssue(ctx context.Context, req *CreateIssueRequest) (*types.Issue, error) {
	var issue types.Issue
	if err := c.do(ctx, http.MethodPost, "/api/v1/issues", req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	var issue types.Issue
	if err := c.do(ctx, http.MethodGet, "/api/v1/issues/"+url.PathEscape(id), nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) ListIssues(ctx context.Context) ([]*types.Issue, error) {
	var issues []*types.Issue
	if err := c.do(ctx, http.MethodGet, "/api/v1/issues", nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (c *Client) UpdateIssue(ctx context.Context, id string, updates map[string]interface{}) (*types.Issue, error) {
	var issue types.Issue
	if err := c.do(ctx, http.MethodPatch, "/api/v1/issues/"+url.PathEscape(id), updates, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) DeleteIssue(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/issues/"+url.PathEscape(id), nil, nil)
}

// RestoreIssue re-creates a previously deleted issue verbatim.
func (c *Client) RestoreIssue(ctx context.Context, issue *types.Issue, labelIDs []string) (*types.Issue, error) {
	payload := map[string]interface{}{"issue": issue}
	if len(labelIDs) > 0 {
		payload["label_ids"] = labelIDs
	}
	var restored types.Issue
	if err := c.do(ctx, http.MethodPost, "/api/v1/issues/restore", payload, &restored); err != nil {
		return nil, err
	}
	return &restored, nil
}

func (c *Client) BatchUpdateIssues(ctx context.Context, ids []string, updates map[string]interface{}) ([]*types.Issue, error) {
	payload := map[string]interface{}{"issue_ids": ids, "updates": updates}
	var issues []*types.Issue
	if err := c.do(ctx, http.MethodPatch, "/api/v1/issues/batch", payload, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (c *Client) BatchDeleteIssues(ctx context.Context, ids []string) (int, error) {
	payload := map[string]interface{}{"issue_ids": ids}
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/issues/batch-delete", payload, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (c *Client) SearchIssues(ctx context.Context, query string, limit int) ([]*types.SearchResult, error) {
	path := "/api/v1/issues/search?q=" + url.QueryEscape(query)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var results []*types.SearchResult
	if err := c.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) CreateProject(ctx context.Context, name, color string) (*types.Project, error) {
	payload := map[string]string{"name": name, "color": color}
	var project types.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", payload, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*types.Project, error) {
	var project types.Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]*types.Project, error) {
	var projects []*types.Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, updates map[string]interface{}) (*types.Project, error) {
	var project types.Project
	if err := c.do(ctx, http.MethodPatch, "/api/v1/projects/"+url.PathEscape(id), updates, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RestoreProject(ctx context.Context, project *types.Project) (*types.Project, error) {
	var restored types.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects/restore", project, &restored); err != nil {
		return nil, err
	}
	return &restored, nil
}

func (c *Client) CreateLabel(ctx context.Context, name, color string) (*types.Label, error) {
	payload := map[string]string{"name": name, "color": color}
	var label types.Label
	if err := c.do(ctx, http.MethodPost, "/api/v1/labels", payload, &label); err != nil {
		return nil, err
	}
	return &label, nil
}

func (c *Client) ListLabels(ctx context.Context) ([]*types.Label, error) {
	var labels []*types.Label
	if err := c.do(ctx, http.MethodGet, "/api/v1/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *Client) UpdateLabel(ctx context.Context, id string, updates map[string]interface{}) (*types.Label, error) {
	var label types.Label
	if err := c.do(ctx, http.MethodPatch, "/api/v1/labels/"+url.PathEscape(id), updates, &label); err != nil {
		return nil, err
	}
	return &label, nil
}

func (c *Client) DeleteLabel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/labels/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RestoreLabel(ctx context.Context, label *types.Label) (*types.Label, error) {
	var restored types.Label
	if err := c.do(ctx, http.MethodPost, "/api/v1/labels/restore", label, &restored); err != nil {
		return nil, err
	}
	return &restored, nil
}

func (c *Client) CreateComment(ctx context.Context, issueID, content string) (*types.Comment, error) {
	payload := map[string]string{"content": content}
	var comment types.Comment
	err := c.do(ctx, http.MethodPost, "/api/v1/issues/"+url.PathEscape(issueID)+"/comments", payload, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) ListComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	var comments []*types.Comment
	err := c.do(ctx, http.MethodGet, "/api/v1/issues/"+url.PathEscape(issueID)+"/comments", nil, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) UpdateComment(ctx context.Context, id string, updates map[string]interface{}) (*types.Comment, error) {
	var comment types.Comment
	if err := c.do(ctx, http.MethodPatch, "/api/v1/comments/"+url.PathEscape(id), updates, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/comments/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RestoreComment(ctx context.Context, comment *types.Comment) (*types.Comment, error) {
	var restored types.Comment
	if err := c.do(ctx, http.MethodPost, "/api/v1/comments/restore", comment, &restored); err != nil {
		return nil, err
	}
	return &restored, nil
}

// UploadAttachment streams a local file to the server as a multipart upload.
func (c *Client) UploadAttachment(ctx context.Context, issueID, filePath string) (*types.Attachment, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close() // nolint:errcheck

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/issues/"+url.PathEscape(issueID)+"/attachments", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(versionHeader, Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	var attachment types.Attachment
	if err := json.NewDecoder(resp.Body).Decode(&attachment); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &attachment, nil
}

func (c *Client) ListAttachments(ctx context.Context, issueID string) ([]*types.Attachment, error) {
	var attachments []*types.Attachment
	err := c.do(ctx, http.MethodGet, "/api/v1/issues/"+url.PathEscape(issueID)+"/attachments", nil, &attachments)
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/attachments/"+url.PathEscape(id), nil, nil)
}
