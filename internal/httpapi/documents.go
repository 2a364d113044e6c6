package httpapi

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gbellini/scriba/internal/store"
)

// allowedUploadTypes maps accepted file extensions to the MIME type handed
// to the ingestion pipeline.
var allowedUploadTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
}

func allowedExtensions() string {
	exts := make([]string, 0, len(allowedUploadTypes))
	for ext := range allowedUploadTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxUploadBytes))
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_file", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	fileType, ok := allowedUploadTypes[ext]
	if !ok {
		respondError(w, http.StatusBadRequest, "unsupported_file_type",
			fmt.Sprintf("unsupported file type %q, allowed: %s", ext, allowedExtensions()))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxUploadBytes))
			return
		}
		respondError(w, http.StatusBadRequest, "read_failed", err.Error())
		return
	}
	if len(content) == 0 {
		respondError(w, http.StatusBadRequest, "empty_file", "uploaded file is empty")
		return
	}

	sum := md5.Sum(content)
	hash := hex.EncodeToString(sum[:])

	// A re-upload of identical bytes returns the existing record instead of
	// reprocessing and duplicating index entries.
	if existing, err := s.store.GetDocumentByHash(r.Context(), hash); err == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"document":  existing,
			"duplicate": true,
		})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	storedName := uuid.NewString() + "-" + filepath.Base(header.Filename)
	tmpPath := filepath.Join(s.cfg.TempUploadDir, storedName)
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		respondError(w, http.StatusInternalServerError, "write_failed", err.Error())
		return
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			s.logger.Warn("temp upload cleanup failed", "path", tmpPath, "error", err)
		}
	}()

	stats, ingestErr := s.engine.AddDocument(r.Context(), tmpPath, fileType, map[string]string{
		"source":            storedName,
		"original_filename": header.Filename,
	})
	if ingestErr != nil {
		s.logger.Error("document ingestion failed", "filename", header.Filename, "error", ingestErr)
	}

	doc, err := s.store.CreateDocument(r.Context(), store.Document{
		Filename:         storedName,
		OriginalFilename: header.Filename,
		FileType:         fileType,
		ContentHash:      hash,
		ChunkCount:       stats.ChunkCount,
		TotalTokens:      stats.TotalTokens,
		Processed:        ingestErr == nil && stats.ChunkCount > 0,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	status := http.StatusCreated
	resp := map[string]any{"document": doc, "duplicate": false}
	if ingestErr != nil {
		resp["warning"] = "document stored but not indexed"
	}
	respondJSON(w, status, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "document_not_found", "document not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if err := s.engine.DeleteSource(r.Context(), doc.Filename); err != nil {
		respondError(w, http.StatusInternalServerError, "index_error", err.Error())
		return
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}
