// Package server exposes the mutation service over HTTP. All writes go
// through here so the storage layer stays the single authority for issue
// numbering and hierarchy rules.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/slatehq/slate/internal/storage"
)

// Version is the server version reported on every response. It is a var so
// main can stamp it at build time.
var Version = "0.9.2"

const versionHeader = "X-Slate-Version"

// Options configures a Server beyond its storage backend.
type Options struct {
	Addr           string
	AttachmentsDir string
	LogPath        string
	LogMaxSizeMB   int
	LogMaxBackups  int
	LogMaxAgeDays  int
	RequestTimeout time.Duration
}

// Server is the HTTP mutation service.
type Server struct {
	store          storage.Storage
	httpServer     *http.Server
	attachmentsDir string
	logFile        *lumberjack.Logger
	logf           func(format string, args ...interface{})
	readyChan      chan struct{}
}

// New creates a server around the given storage backend.
func New(store storage.Storage, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:7333"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		store:          store,
		attachmentsDir: opts.AttachmentsDir,
		readyChan:      make(chan struct{}),
	}

	if opts.LogPath != "" {
		s.logFile = &lumberjack.Logger{
			Filename:   opts.LogPath,
			MaxSize:    orDefault(opts.LogMaxSizeMB, 10),
			MaxBackups: orDefault(opts.LogMaxBackups, 3),
			MaxAge:     orDefault(opts.LogMaxAgeDays, 28),
			Compress:   true,
		}
		s.logf = func(format string, args ...interface{}) {
			msg := fmt.Sprintf(format, args...)
			timestamp := time.Now().Format("2006-01-02 15:04:05")
			_, _ = fmt.Fprintf(s.logFile, "[%s] %s\n", timestamp, msg)
		}
	} else {
		s.logf = func(string, ...interface{}) {}
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux, opts.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/issues", s.handleCreateIssue)
	mux.HandleFunc("GET /api/v1/issues", s.handleListIssues)
	mux.HandleFunc("GET /api/v1/issues/search", s.handleSearchIssues)
	mux.HandleFunc("POST /api/v1/issues/restore", s.handleRestoreIssue)
	mux.HandleFunc("PATCH /api/v1/issues/batch", s.handleBatchUpdateIssues)
	mux.HandleFunc("POST /api/v1/issues/batch-delete", s.handleBatchDeleteIssues)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.handleGetIssue)
	mux.HandleFunc("PATCH /api/v1/issues/{id}", s.handleUpdateIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.handleDeleteIssue)

	mux.HandleFunc("GET /api/v1/issues/{id}/comments", s.handleListComments)
	mux.HandleFunc("POST /api/v1/issues/{id}/comments", s.handleCreateComment)
	mux.HandleFunc("PATCH /api/v1/comments/{id}", s.handleUpdateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", s.handleDeleteComment)
	mux.HandleFunc("POST /api/v1/comments/restore", s.handleRestoreComment)

	mux.HandleFunc("GET /api/v1/issues/{id}/attachments", s.handleListAttachments)
	mux.HandleFunc("POST /api/v1/issues/{id}/attachments", s.handleUploadAttachment)
	mux.HandleFunc("DELETE /api/v1/attachments/{id}", s.handleDeleteAttachment)

	mux.HandleFunc("POST /api/v1/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/v1/projects/restore", s.handleRestoreProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PATCH /api/v1/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("POST /api/v1/labels", s.handleCreateLabel)
	mux.HandleFunc("GET /api/v1/labels", s.handleListLabels)
	mux.HandleFunc("POST /api/v1/labels/restore", s.handleRestoreLabel)
	mux.HandleFunc("PATCH /api/v1/labels/{id}", s.handleUpdateLabel)
	mux.HandleFunc("DELETE /api/v1/labels/{id}", s.handleDeleteLabel)
}

// middleware stamps the version header, applies the request timeout, and logs
// each request with its outcome.
func (s *Server) middleware(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(versionHeader, Version)

		if clientVersion := r.Header.Get(versionHeader); clientVersion != "" {
			if !compatibleVersion(clientVersion) {
				writeErrorMessage(w, http.StatusBadRequest,
					fmt.Sprintf("client version %s is incompatible with server version %s", clientVersion, Version))
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		s.logf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// compatibleVersion accepts any client on the same major version.
func compatibleVersion(clientVersion string) bool {
	c := "v" + clientVersion
	srv := "v" + Version
	if !semver.IsValid(c) {
		return false
	}
	return semver.Major(c) == semver.Major(srv)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Start listens and serves until Shutdown is called. It closes the ready
// channel once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.logf("server listening on %s (version %s)", ln.Addr(), Version)
	close(s.readyChan)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Ready returns a channel closed once the server is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.readyChan }

// Handler returns the root handler, exposed for in-process testing.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Shutdown drains in-flight requests and closes the log file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.logf("server stopped")
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
