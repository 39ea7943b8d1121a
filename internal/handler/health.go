package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything that can verify its backing resource is reachable.
// *sqlite.DB satisfies it directly.
type Pinger interface {
	Ping() error
}

// HealthChecker probes a remote collaborator. The analysis client satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports overall service health plus per-dependency status.
type HealthHandler struct {
	db       Pinger
	analysis HealthChecker
}

func NewHealthHandler(db Pinger, analysis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, analysis: analysis}
}

type healthResponse struct {
	Status   string `json:"status"`   // "ok" or "degraded"
	Database string `json:"database"` // "up" / "down"
	Analysis string `json:"analysis"` // "up" / "down"
}

// HandleHealth probes the database and the analysis service.
//
// HTTP: GET /health (public, unauthenticated)
//
// Always 200: a degraded dependency is reported in the body, not the status
// code, so load balancers keep routing to the gateway itself (which IS up)
// while operators see exactly which collaborator is down.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "up", Analysis: "up"}

	if err := h.db.Ping(); err != nil {
		resp.Status = "degraded"
		resp.Database = "down"
	}

	// A short probe deadline — the health endpoint must answer fast even
	// when the analysis service is hanging.
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.analysis.Health(ctx); err != nil {
		resp.Status = "degraded"
		resp.Analysis = "down"
	}

	writeJSON(w, http.StatusOK, resp)
}
