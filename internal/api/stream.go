package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/conversation"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/identity"
)

const streamBuffer = 64

type snapshotPayload struct {
	Entries   []domain.Entry    `json:"entries"`
	Selection domain.OracleKind `json:"selection,omitempty"`
}

// HandleStream streams transcript events over SSE.
//
// A fresh connection receives a snapshot event followed by live entry events.
// Reconnecting clients send Last-Event-ID and receive only the missed events,
// or a new snapshot when those were evicted from the replay history.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil && parsed > 0 {
			lastEventID = parsed
			slog.Info("SSE client reconnecting with Last-Event-ID",
				"user_id", userID,
				"session_id", sessionID,
				"last_event_id", lastEventID,
			)
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", h.opts.SSERetryDelay.Milliseconds())); err != nil {
		slog.Warn("failed to write SSE retry header", "error", err, "user_id", userID)
		return
	}

	// Subscribe before reading state so nothing falls between the two.
	events, cancel := c.Store().Subscribe(streamBuffer)
	defer cancel()

	c.Ready()
	sent, err := h.catchUp(w, c.Store(), c.Selection(), lastEventID)
	if err != nil {
		slog.Warn("failed to write SSE catch-up", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	slog.Info("SSE connection established",
		"user_id", userID,
		"session_id", sessionID,
		"event_id", sent,
		"reconnect", lastEventID > 0,
	)

	keepalive := time.NewTicker(h.opts.SSEKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Info("SSE stream disconnected", "user_id", userID, "session_id", sessionID)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if ev.Seq <= sent {
				continue
			}
			if ev.Seq > sent+1 {
				// Dropped events while the client was slow.
				sent, err = h.catchUp(w, c.Store(), c.Selection(), sent)
			} else {
				err = writeEvent(w, ev)
				sent = ev.Seq
			}
			if err != nil {
				slog.Warn("failed to write SSE event", "error", err, "user_id", userID)
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				slog.Warn("failed to write SSE keepalive ping", "error", err, "user_id", userID)
				return
			}
			flusher.Flush()
		}
	}
}

// catchUp replays events after lastEventID, or writes a snapshot when they are
// no longer retained or the id is from a previous process. It returns the sequence number the client now holds.
func (h *Handler) catchUp(w io.Writer, s *conversation.Store, selection domain.OracleKind, lastEventID int64) (int64, error) {
	if lastEventID > 0 && lastEventID <= s.Seq() {
		if missed, ok := s.EventsSince(lastEventID); ok {
			sent := lastEventID
			for _, ev := range missed {
				if err := writeEvent(w, ev); err != nil {
					return sent, err
				}
				sent = ev.Seq
			}
			return sent, nil
		}
	}

	entries, seq := s.SnapshotWithSeq()
	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := json.Marshal(snapshotPayload{Entries: entries, Selection: selection})
	if err != nil {
		return lastEventID, err
	}
	return seq, writeSSEWithID(w, seq, "snapshot", string(data))
}

func writeEvent(w io.Writer, ev conversation.Event) error {
	name := "entry"
	if ev.Type == conversation.EventReset {
		name = "reset"
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return writeSSEWithID(w, ev.Seq, name, string(data))
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
