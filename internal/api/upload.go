package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/daleelapp/daleel/internal/extract"
	"github.com/daleelapp/daleel/internal/ingest"
)

// maxUploadSize caps document uploads at 32 MiB.
const maxUploadSize = 32 << 20

// UploadHandler accepts document uploads and indexes them.
type UploadHandler struct {
	ingestor Ingestor
	docsDir  string
	logger   *slog.Logger
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(ingestor Ingestor, docsDir string, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{ingestor: ingestor, docsDir: docsDir, logger: logger}
}

// upload handles POST /api/upload: save the multipart "file" part into the
// documents directory, then index it incrementally.
func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file part is required")
		return
	}
	defer file.Close()

	name := sanitizeFilename(header.Filename)
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "empty filename")
		return
	}
	if !extract.Supported(name) {
		writeError(w, http.StatusBadRequest, "unsupported_format", "only .docx and .txt files are accepted")
		return
	}

	if err := os.MkdirAll(h.docsDir, 0750); err != nil {
		h.logger.Error("creating documents directory", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	dst, err := os.Create(filepath.Join(h.docsDir, name))
	if err != nil {
		h.logger.Error("creating upload file", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		h.logger.Error("writing upload file", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if err := dst.Close(); err != nil {
		h.logger.Error("closing upload file", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	result, err := h.ingestor.IngestFiles(r.Context(), []string{name})
	if err != nil {
		if errors.Is(err, ingest.ErrNoChunks) {
			writeError(w, http.StatusUnprocessableEntity, "empty_document", "file contains no extractable text")
			return
		}
		h.logger.Error("indexing upload", "error", err, "file", name)
		writeError(w, http.StatusInternalServerError, "indexing_failed", "")
		return
	}

	h.logger.Info("document indexed", "file", name, "chunks", result.Chunks)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "indexed",
		"file":   name,
		"chunks": result.Chunks,
	})
}

// sanitizeFilename strips any path components and rejects names that could
// escape the documents directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return ""
	}
	return name
}
