package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/conversation"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/identity"
)

const eventBuffer = 64

// inbound is a client message.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Oracle  string `json:"oracle,omitempty"`
}

// outbound is a server message.
type outbound struct {
	Type       string                    `json:"type"`
	Entries    []domain.Entry            `json:"entries,omitempty"`
	Selection  *domain.OracleKind        `json:"selection,omitempty"`
	Seq        int64                     `json:"seq,omitempty"`
	Event      *conversation.Event       `json:"event,omitempty"`
	Submission *commandcenter.Submission `json:"submission,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// Handler serves GET /ws/conversation.
type Handler struct {
	registry      *commandcenter.Registry
	sm            *SessionManager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *commandcenter.Registry, sm *SessionManager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		registry:      registry,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	c, err := h.registry.Get(userID, sessionID)
	if err != nil {
		http.Error(w, "conversation unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := c.Store().Subscribe(eventBuffer)
	defer unsubscribe()

	c.Ready()
	sent, err := h.sendSnapshot(ctx, ws, c)
	if err != nil {
		slog.Debug("Failed to send snapshot", "error", err, "user_id", userID)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, c, events, sent)
	}()

	h.inputLoop(ctx, ws, c, userID, sessionID)
	cancel()
	wg.Wait()
	slog.Info("Conversation socket ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, c *commandcenter.Controller, userID, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			h.reply(ctx, ws, outbound{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "submit":
			sub, err := c.Submit(ctx, msg.Content)
			if err != nil {
				h.reply(ctx, ws, outbound{Type: "error", Error: err.Error()})
				if errors.Is(err, commandcenter.ErrClosed) {
					return
				}
				continue
			}
			h.reply(ctx, ws, outbound{Type: "accepted", Submission: sub})
		case "select":
			kind, err := domain.ParseOracleKind(msg.Oracle)
			if err == nil {
				err = c.SelectOracle(kind)
			}
			if err != nil {
				h.reply(ctx, ws, outbound{Type: "error", Error: err.Error()})
				continue
			}
			selection := c.Selection()
			h.reply(ctx, ws, outbound{Type: "selection", Selection: &selection})
		case "reset":
			c.Reset()
		case "ping":
			h.reply(ctx, ws, outbound{Type: "pong"})
		default:
			h.reply(ctx, ws, outbound{Type: "error", Error: "unknown message type"})
		}
		slog.Debug("WebSocket message handled", "user_id", userID, "session_id", sessionID, "type", msg.Type)
	}
}

// outputLoop forwards transcript events. A gap in sequence numbers means the
// subscriber fell behind, so the client is resynced with a fresh snapshot.
func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, c *commandcenter.Controller, events <-chan conversation.Event, sent int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Seq <= sent {
				continue
			}
			var err error
			if ev.Seq > sent+1 {
				sent, err = h.sendSnapshot(ctx, ws, c)
			} else {
				msgType := "entry"
				if ev.Type == conversation.EventReset {
					msgType = "reset"
				}
				err = h.writeJSON(ctx, ws, outbound{Type: msgType, Event: &ev, Seq: ev.Seq})
				sent = ev.Seq
			}
			if err != nil {
				slog.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

func (h *Handler) sendSnapshot(ctx context.Context, ws *websocket.Conn, c *commandcenter.Controller) (int64, error) {
	entries, seq := c.Store().SnapshotWithSeq()
	if entries == nil {
		entries = []domain.Entry{}
	}
	selection := c.Selection()
	return seq, h.writeJSON(ctx, ws, outbound{Type: "snapshot", Entries: entries, Selection: &selection, Seq: seq})
}

func (h *Handler) reply(ctx context.Context, ws *websocket.Conn, msg outbound) {
	if err := h.writeJSON(ctx, ws, msg); err != nil {
		slog.Debug("Failed to send reply", "type", msg.Type, "error", err)
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
