package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/identity"
)

// ConversationResponse is the transcript view returned by GET /api/conversation.
type ConversationResponse struct {
	Entries   []domain.Entry    `json:"entries"`
	Selection domain.OracleKind `json:"selection,omitempty"`
	Seq       int64             `json:"seq"`
}

// SubmitRequest is the body of POST /api/conversation/messages.
// A present Oracle field replaces the selection before submitting.
type SubmitRequest struct {
	Message string  `json:"message"`
	Oracle  *string `json:"oracle,omitempty"`
}

// SelectionRequest is the body of PUT /api/conversation/selection.
type SelectionRequest struct {
	Oracle string `json:"oracle"`
}

// HandleConversation returns the transcript. The first read seeds the welcome entry.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.Ready()

	entries, seq := c.Store().SnapshotWithSeq()
	if entries == nil {
		entries = []domain.Entry{}
	}
	JSON(w, http.StatusOK, ConversationResponse{
		Entries:   entries,
		Selection: c.Selection(),
		Seq:       seq,
	})
}

// HandleReset clears the transcript.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubmit accepts a user message and returns the created entry ids.
// The oracle entry resolves asynchronously; clients follow the stream.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID != "" && !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBody)
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Oracle != nil {
		if !h.applySelection(w, c, *req.Oracle) {
			return
		}
	}

	sub, err := c.Submit(r.Context(), req.Message)
	switch {
	case errors.Is(err, commandcenter.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, commandcenter.ErrClosed):
		Error(w, http.StatusServiceUnavailable, "conversation closed")
		return
	case err != nil:
		slog.Error("Failed to submit message", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to submit message")
		return
	}

	slog.Info("Message submitted",
		"user_id", userID,
		"session_id", identity.SessionIDFromContext(r.Context()),
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"kind", sub.Kind,
		"message_length", len(req.Message),
	)
	JSON(w, http.StatusAccepted, sub)
}

// HandleSelection sets or clears the explicit oracle selection.
func (h *Handler) HandleSelection(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBody)
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.applySelection(w, c, req.Oracle) {
		return
	}
	JSON(w, http.StatusOK, map[string]domain.OracleKind{"selection": c.Selection()})
}

func (h *Handler) applySelection(w http.ResponseWriter, c *commandcenter.Controller, raw string) bool {
	kind, err := domain.ParseOracleKind(raw)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := c.SelectOracle(kind); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
