package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/catalog"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/identity"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
	healthTimeout     = 5 * time.Second
)

// HealthResponse reports local and upstream readiness.
type HealthResponse struct {
	Status   string               `json:"status"`
	Database string               `json:"database"`
	Gateway  *domain.HealthStatus `json:"gateway,omitempty"`
	Upstream string               `json:"upstream"`
	Sessions int                  `json:"sessions"`
}

// HandleHealth pings the database and probes the oracle service once.
// A failing database yields 503; an unhealthy upstream only degrades the status.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Upstream: "unknown", Sessions: h.registry.Len()}
	code := http.StatusOK

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	if h.upstream != nil {
		status, err := h.upstream.Health(ctx)
		switch {
		case err != nil:
			slog.Warn("Oracle service health probe failed", "error", err)
			resp.Upstream = "unreachable"
		case !status.Healthy():
			resp.Upstream = "unhealthy"
			resp.Gateway = status
		default:
			resp.Upstream = "ok"
			resp.Gateway = status
		}
		if resp.Upstream != "ok" && code == http.StatusOK {
			resp.Status = "degraded"
		}
	}

	JSON(w, code, resp)
}

// HandleOracles lists the selectable oracles with example questions.
func (h *Handler) HandleOracles(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string][]catalog.Oracle{"oracles": h.catalog.List()})
}

// HandleQueries returns the caller's most recent audited queries.
func (h *Handler) HandleQueries(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "query journal disabled")
		return
	}
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultQueryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxQueryLimit)
	}

	records, err := h.repo.ListRecent(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to list queries", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list queries")
		return
	}
	if records == nil {
		records = []*domain.QueryRecord{}
	}
	JSON(w, http.StatusOK, map[string]any{"queries": records})
}
