package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/slatehq/slate/internal/types"
)

const maxAttachmentSize = 32 << 20 // 32 MiB

// handleUploadAttachment accepts a multipart upload, writes the file under the
// attachments directory, and records its metadata. The stored name is the
// attachment id so uploads with colliding filenames never clobber each other.
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	issueID := r.PathValue("id")
	if _, err := s.store.GetIssue(r.Context(), issueID); err != nil {
		writeError(w, err)
		return
	}
	if s.attachmentsDir == "" {
		writeErrorMessage(w, http.StatusInternalServerError, "attachment storage is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, &types.ValidationError{Field: "file", Reason: "invalid multipart payload"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, &types.ValidationError{Field: "file", Reason: "file field is required"})
		return
	}
	defer file.Close() // nolint:errcheck

	if err := os.MkdirAll(s.attachmentsDir, 0o755); err != nil {
		writeError(w, err)
		return
	}

	id := uuid.NewString()
	storagePath := filepath.Join(s.attachmentsDir, id+filepath.Ext(header.Filename))
	dst, err := os.Create(storagePath)
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := io.Copy(dst, file)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(storagePath)
		writeError(w, err)
		return
	}

	attachment, err := s.store.AddAttachment(r.Context(), &types.Attachment{
		ID:          id,
		IssueID:     issueID,
		Filename:    filepath.Base(header.Filename),
		StoragePath: storagePath,
		MimeType:    header.Header.Get("Content-Type"),
		Size:        size,
	})
	if err != nil {
		_ = os.Remove(storagePath)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	issueID := r.PathValue("id")
	if _, err := s.store.GetIssue(r.Context(), issueID); err != nil {
		writeError(w, err)
		return
	}
	attachments, err := s.store.ListAttachments(r.Context(), issueID)
	if err != nil {
		writeError(w, err)
		return
	}
	if attachments == nil {
		attachments = []*types.Attachment{}
	}
	writeJSON(w, http.StatusOK, attachments)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAttachment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
