package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/auth"
	"github.com/sakif/datachat/internal/service"
)

// QueryHandler exposes the ask and history endpoints.
type QueryHandler struct {
	svc *service.QueryService
}

func NewQueryHandler(svc *service.QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// askRequest is the body for POST /api/ask.
// Context carries prior conversation turns; the gateway never inspects them,
// so json.RawMessage keeps them byte-for-byte intact on the way upstream.
type askRequest struct {
	DatasetID string            `json:"datasetId"`
	Question  string            `json:"question"`
	Context   []json.RawMessage `json:"context,omitempty"`
}

// HandleAsk answers one natural-language question about one owned dataset.
//
// HTTP: POST /api/ask
// Auth: Required
// 200 with the analysis payload, 400/404 on bad input or foreign dataset,
// 503/504 when the analysis service is down or slow.
func (h *QueryHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	resp, err := h.svc.Ask(r.Context(), identity.UserID, req.DatasetID, req.Question, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHistory returns the caller's most recent exchanges, newest first.
//
// HTTP: GET /api/history[?datasetId=...]
// Auth: Required
func (h *QueryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	entries, err := h.svc.History(r.Context(), identity.UserID, r.URL.Query().Get("datasetId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
