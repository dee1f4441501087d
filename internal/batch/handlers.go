package batch

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/invoice-extractor/internal/extraction"
)

// maxUploadSize bounds multipart and JSON request bodies
const maxUploadSize = int64(50 << 20)

type errorResponse struct {
	Error  string                  `json:"error"`
	Report *extraction.ErrorReport `json:"report,omitempty"`
}

type extractRequest struct {
	DataURL  string `json:"dataUrl"`
	Filename string `json:"filename"`
	Prompt   string `json:"prompt"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps a pipeline failure kind to an HTTP status
func statusFor(kind string) int {
	switch kind {
	case extraction.KindUnrecognizedDocument:
		return http.StatusUnsupportedMediaType
	case extraction.KindTransport, extraction.KindInvalidOutput:
		return http.StatusBadGateway
	case extraction.KindSchemaViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleExtract accepts a multipart "file" upload or a JSON data URL body
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var (
		batch *Batch
		err   error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		batch, err = s.extractUpload(r)
	} else {
		batch, err = s.extractDataURL(r)
	}

	var badRequest *requestError
	switch {
	case err == nil:
	case errors.As(err, &badRequest):
		writeError(w, http.StatusBadRequest, badRequest.message)
		return
	case errors.Is(err, ErrInvalidDataURL):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		report := extraction.ReportFor(err)
		slog.Error("Error extracting document", "stage", report.Stage, "kind", report.Kind, "error", err)
		writeJSON(w, statusFor(report.Kind), errorResponse{Error: report.Message, Report: report})
		return
	}

	status := http.StatusCreated
	if batch.AllFailed() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, batch)
}

// requestError is a client mistake reported verbatim with a 400
type requestError struct {
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error {
	return e.err
}

func (s *Server) extractUpload(r *http.Request) (*Batch, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{message: "File is too large. Maximum size is 50MB.", err: err}
		}
		return nil, &requestError{message: "Error parsing form", err: err}
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, &requestError{message: "No file provided", err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &requestError{message: "Error reading file", err: err}
	}
	if len(data) == 0 {
		return nil, &requestError{message: "Uploaded file is empty"}
	}

	return s.service.ProcessDocument(r.Context(), header.Filename, data,
		header.Header.Get("Content-Type"), r.FormValue("prompt"))
}

func (s *Server) extractDataURL(r *http.Request) (*Batch, error) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &requestError{message: "Invalid request body", err: err}
	}
	if req.DataURL == "" {
		return nil, &requestError{message: "dataUrl is required"}
	}
	return s.service.ProcessDataURL(r.Context(), req.DataURL, req.Filename, req.Prompt)
}

// lookupError writes the response for a failed batch lookup
func lookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Batch not found")
		return
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	slog.Error("Error loading batch", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.List()
	if err != nil {
		slog.Error("Error listing batches", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if batches == nil {
		batches = []*Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleGetTables(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch.Tables)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetFile(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.PathValue("id")); err != nil {
		lookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
