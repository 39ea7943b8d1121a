package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/auth"
	"github.com/sakif/datachat/internal/service"
)

// DatasetHandler exposes CSV upload and dataset listing.
type DatasetHandler struct {
	svc    *service.DatasetService
	logger *slog.Logger
}

func NewDatasetHandler(svc *service.DatasetService, logger *slog.Logger) *DatasetHandler {
	return &DatasetHandler{svc: svc, logger: logger}
}

// HandleUpload ingests one multipart CSV upload.
//
// HTTP: POST /api/datasets  (multipart/form-data, field name "file")
// Auth: Required
//
// SIZE ENFORCEMENT:
// http.MaxBytesReader wraps the body BEFORE parsing, so an oversized upload
// is cut off while streaming — the server never buffers 2GB to find out the
// limit was 10MB. When the limit trips, ParseMultipartForm returns a
// *http.MaxBytesError, which we map to 413 rather than a generic 400.
func (h *DatasetHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes)

	// 1 MiB memory threshold: bigger parts spill to temp files instead of RAM.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.TooLarge("file exceeds the 10 MiB upload limit"))
			return
		}
		writeError(w, apperror.ValidationFailed("body", "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "a file field named 'file' is required"))
		return
	}
	defer file.Close()

	ds, err := h.svc.Upload(r.Context(), identity.UserID, header.Filename, header.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ds)
}

// HandleList returns the caller's datasets, newest first.
//
// HTTP: GET /api/datasets
// Auth: Required
func (h *DatasetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	datasets, err := h.svc.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("listing datasets failed",
			slog.String("userID", identity.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, datasets)
}
