// Package api provides HTTP handlers for the command center API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/catalog"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/identity"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/store"
)

// defaultMaxRequestBodySize caps JSON request bodies (64KB).
const defaultMaxRequestBodySize = 64 << 10

// Options tunes handler behavior. Zero values fall back to defaults.
type Options struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxRequestBody    int64
	SSEKeepalive      time.Duration
	SSERetryDelay     time.Duration
}

func (o Options) withDefaults() Options {
	if o.RateLimitRequests <= 0 {
		o.RateLimitRequests = 30
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Minute
	}
	if o.MaxRequestBody <= 0 {
		o.MaxRequestBody = defaultMaxRequestBodySize
	}
	if o.SSEKeepalive <= 0 {
		o.SSEKeepalive = 15 * time.Second
	}
	if o.SSERetryDelay <= 0 {
		o.SSERetryDelay = 3 * time.Second
	}
	return o
}

// Handler serves the conversation, catalog, audit and health endpoints.
type Handler struct {
	registry    *commandcenter.Registry
	catalog     *catalog.Catalog
	repo        store.Repository
	upstream    gateway.HealthChecker
	rateLimiter *RateLimiter
	opts        Options
}

// NewHandler creates a Handler. repo and upstream may be nil.
func NewHandler(registry *commandcenter.Registry, cat *catalog.Catalog, repo store.Repository, upstream gateway.HealthChecker, opts Options) *Handler {
	opts = opts.withDefaults()
	if cat == nil {
		cat = catalog.Default()
	}
	return &Handler{
		registry:    registry,
		catalog:     cat,
		repo:        repo,
		upstream:    upstream,
		rateLimiter: NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow),
		opts:        opts,
	}
}

// RegisterRoutes registers API routes. Identity middleware must run first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.HandleHealth)
	r.Get("/api/oracles", h.HandleOracles)
	r.Get("/api/queries", h.HandleQueries)

	r.Route("/api/conversation", func(r chi.Router) {
		r.Get("/", h.HandleConversation)
		r.Delete("/", h.HandleReset)
		r.Post("/messages", h.HandleSubmit)
		r.Put("/selection", h.HandleSelection)
		r.Get("/stream", h.HandleStream)
	})
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// controller resolves the session controller for the request, writing an
// error response when it cannot.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*commandcenter.Controller, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	c, err := h.registry.Get(userID, identity.SessionIDFromContext(r.Context()))
	if err != nil {
		slog.Error("Failed to open conversation", "user_id", userID, "error", err)
		Error(w, http.StatusServiceUnavailable, "conversation unavailable")
		return nil, false
	}
	return c, true
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
