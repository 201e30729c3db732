// Package commandcenter orchestrates oracle conversations.
//
// A Controller owns one transcript. Submit classifies the utterance, appends
// the user entry and a pending oracle entry, and resolves the pending entry
// from a goroutine once the gateway answers. Each flow only ever updates the
// entry it created, so concurrent submissions never contend.
package commandcenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/conversation"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/format"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/intent"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/journal"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/metrics"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/store"
)

// Transcript texts.
const (
	WelcomeMessage          = "Welcome to ZeroGravis Oracle Command Center! Select an oracle type and ask your questions."
	PendingMessage          = "Querying oracle network..."
	GuidanceMessage         = `Please select an oracle type first or ask a more specific question (e.g., "ETH price", "weather in London", "asteroid data").`
	TransportFailureMessage = "Error querying oracle network. Please try again."
	failurePrefix           = "Oracle request failed: "
)

var (
	// ErrEmptyMessage is returned for blank submissions; nothing is appended.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnsupportedOracle is returned when selecting a kind the router cannot serve.
	ErrUnsupportedOracle = errors.New("unsupported oracle kind")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller is closed")
)

// QueryAuditor journals gateway queries. store.Repository satisfies it.
type QueryAuditor interface {
	RecordQuery(ctx context.Context, q *domain.QueryRecord) error
	CompleteQuery(ctx context.Context, c store.Completion) error
}

// Config holds controller dependencies. Gateway is required.
type Config struct {
	Gateway    gateway.Gateway
	Store      *conversation.Store
	Classifier *intent.Classifier
	Auditor    QueryAuditor
	Journal    journal.Logger
	Consensus  domain.ConsensusMethod
	UserID     string
	SessionID  string
	Channel    string
	Logger     *slog.Logger
	Now        func() time.Time
}

// Controller is the command center for one conversation.
type Controller struct {
	gateway    gateway.Gateway
	store      *conversation.Store
	classifier *intent.Classifier
	auditor    QueryAuditor
	journal    journal.Logger
	consensus  domain.ConsensusMethod
	userID     string
	sessionID  string
	channel    string
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	selection  domain.OracleKind
	closed     bool
	lastActive time.Time

	pending atomic.Int64
	wg      sync.WaitGroup
}

// New creates a controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if cfg.Consensus == "" {
		cfg.Consensus = domain.ConsensusMajority
	}
	if !cfg.Consensus.Valid() {
		return nil, fmt.Errorf("invalid consensus method %q", cfg.Consensus)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = conversation.NewStore(conversation.WithClock(cfg.Now), conversation.WithLogger(cfg.Logger))
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.New(intent.WithClock(cfg.Now))
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Noop{}
	}
	if cfg.Channel == "" {
		cfg.Channel = "http"
	}

	return &Controller{
		gateway:    cfg.Gateway,
		store:      cfg.Store,
		classifier: cfg.Classifier,
		auditor:    cfg.Auditor,
		journal:    cfg.Journal,
		consensus:  cfg.Consensus,
		userID:     cfg.UserID,
		sessionID:  cfg.SessionID,
		channel:    cfg.Channel,
		logger:     cfg.Logger.With("user_id", cfg.UserID, "session_id", cfg.SessionID),
		now:        cfg.Now,
		lastActive: cfg.Now(),
	}, nil
}

// Submission describes the entries created by one Submit call.
type Submission struct {
	UserEntryID   string               `json:"user_entry_id"`
	OracleEntryID string               `json:"oracle_entry_id"`
	Kind          domain.OracleKind    `json:"kind,omitempty"`
	Intent        *domain.ParsedIntent `json:"intent,omitempty"`
	Parameters    map[string]string    `json:"parameters,omitempty"`

	done chan struct{}
}

// Routed reports whether the submission issued a gateway call.
func (s *Submission) Routed() bool {
	return s.Kind != ""
}

// Done is closed once the oracle entry is resolved.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the oracle entry is resolved or ctx ends.
func (s *Submission) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserID returns the owning user.
func (c *Controller) UserID() string { return c.userID }

// SessionID returns the owning session.
func (c *Controller) SessionID() string { return c.sessionID }

// Store returns the transcript owned by the controller.
func (c *Controller) Store() *conversation.Store {
	return c.store
}

// Ready marks an interactive surface as able to render and seeds the welcome
// entry when the transcript is empty.
func (c *Controller) Ready() {
	c.touch()
	if entry, ok := c.store.AppendIfEmpty(domain.RoleSystem, WelcomeMessage, domain.StatusNone); ok {
		c.logger.Debug("Seeded welcome entry", "entry_id", entry.ID)
	}
}

// SelectOracle sets the explicit oracle selection. The empty kind clears it.
func (c *Controller) SelectOracle(kind domain.OracleKind) error {
	if kind != "" && !kind.Routable() {
		return fmt.Errorf("%w: %s", ErrUnsupportedOracle, kind)
	}
	c.mu.Lock()
	c.selection = kind
	c.lastActive = c.now()
	c.mu.Unlock()
	c.logger.Info("Oracle selection changed", "kind", kind)
	return nil
}

// Selection returns the explicit oracle selection, if any.
func (c *Controller) Selection() domain.OracleKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Submit handles one user message. It returns as soon as the pending entry is
// appended; the entry is resolved asynchronously. The gateway call outlives
// cancellation of ctx so every pending entry is eventually resolved.
func (c *Controller) Submit(ctx context.Context, text string) (*Submission, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	selection := c.selection
	c.lastActive = c.now()
	c.mu.Unlock()

	userEntry := c.store.Append(domain.RoleUser, text, domain.StatusNone, "")
	c.logEntry("user_message", userEntry, nil)

	sub := &Submission{UserEntryID: userEntry.ID, done: make(chan struct{})}

	inferred, ok := c.classifier.Classify(text)
	if ok {
		sub.Intent = &inferred
	}

	kind := selection
	if kind == "" && ok {
		kind = inferred.Kind
	}

	if kind == "" {
		guidance := c.store.Append(domain.RoleOracle, GuidanceMessage, domain.StatusResolvedError, "")
		sub.OracleEntryID = guidance.ID
		close(sub.done)
		metrics.RecordNoIntent()
		c.logEntry("no_intent", guidance, nil)
		c.logger.Info("No oracle intent recognized", "entry_id", guidance.ID)
		return sub, nil
	}

	params := intent.Defaults(kind, c.now())
	if ok && inferred.Kind == kind {
		params = inferred.Parameters
	}
	sub.Kind = kind
	sub.Parameters = params

	pending := c.store.Append(domain.RoleOracle, PendingMessage, domain.StatusPending, kind)
	sub.OracleEntryID = pending.ID
	c.recordQuery(ctx, pending, params)

	c.logger.Info("Oracle query issued",
		"entry_id", pending.ID,
		"kind", kind,
		"explicit", selection != "",
		"parameters", params,
	)

	c.wg.Add(1)
	c.pending.Add(1)
	metrics.PendingQueries.Inc()
	go c.resolve(context.WithoutCancel(ctx), sub, pending.CreatedAt)

	return sub, nil
}

// resolve runs the gateway call for sub and applies the terminal patch.
func (c *Controller) resolve(ctx context.Context, sub *Submission, startedAt time.Time) {
	defer c.wg.Done()
	defer close(sub.done)
	defer func() {
		c.pending.Add(-1)
		metrics.PendingQueries.Dec()
	}()

	req := gateway.BuildRequest(sub.Kind, sub.Parameters, c.consensus)
	resp, err := c.gateway.Collect(ctx, req)
	elapsed := c.now().Sub(startedAt)

	res := evaluate(sub.Kind, sub.Parameters, resp, err)
	if updateErr := c.store.Update(sub.OracleEntryID, res.patch()); updateErr != nil {
		c.logger.Error("Failed to resolve transcript entry", "entry_id", sub.OracleEntryID, "error", updateErr)
	}

	metrics.RecordQuery(string(sub.Kind), res.outcome, elapsed)
	c.completeQuery(ctx, sub.OracleEntryID, res, elapsed)

	if entry, ok := c.store.Get(sub.OracleEntryID); ok {
		c.logEntry("oracle_resolved", entry, map[string]any{
			"outcome":    res.outcome,
			"latency_ms": elapsed.Milliseconds(),
		})
	}

	if res.status == domain.StatusResolvedOK {
		c.logger.Info("Oracle query resolved", "entry_id", sub.OracleEntryID, "kind", sub.Kind, "latency", elapsed)
	} else {
		c.logger.Warn("Oracle query failed",
			"entry_id", sub.OracleEntryID,
			"kind", sub.Kind,
			"outcome", res.outcome,
			"error", res.errMessage,
		)
	}
}

// result is the terminal state computed from a gateway answer.
type result struct {
	status     domain.Status
	text       string
	payload    *domain.AggregatedOracleData
	outcome    string
	errCode    string
	errMessage string
}

func (r result) patch() conversation.Patch {
	return conversation.Resolve(r.status, r.text, r.payload)
}

// evaluate maps a gateway answer onto a terminal transcript state.
func evaluate(kind domain.OracleKind, params map[string]string, resp *domain.APIResponse, err error) result {
	switch {
	case errors.Is(err, gateway.ErrDecode):
		return result{
			status:     domain.StatusResolvedError,
			text:       format.NoDataMessage,
			outcome:    metrics.OutcomeApplication,
			errCode:    "DECODE",
			errMessage: err.Error(),
		}
	case err != nil:
		return result{
			status:     domain.StatusResolvedError,
			text:       TransportFailureMessage,
			outcome:    metrics.OutcomeTransport,
			errCode:    "TRANSPORT",
			errMessage: err.Error(),
		}
	case resp == nil:
		return result{
			status:  domain.StatusResolvedError,
			text:    format.NoDataMessage,
			outcome: metrics.OutcomeApplication,
			errCode: "EMPTY_RESPONSE",
		}
	case !resp.Success:
		r := result{
			status:  domain.StatusResolvedError,
			text:    format.NoDataMessage,
			payload: resp.Data,
			outcome: metrics.OutcomeApplication,
		}
		if resp.Error != nil {
			r.errCode = resp.Error.Code
			r.errMessage = resp.Error.Message
			if resp.Error.Message != "" {
				r.text = failurePrefix + resp.Error.Message
			}
		}
		return r
	case !resp.Data.HasValue():
		return result{
			status:     domain.StatusResolvedError,
			text:       format.NoDataMessage,
			payload:    resp.Data,
			outcome:    metrics.OutcomeApplication,
			errCode:    "NO_DATA",
			errMessage: "response carried no aggregated value",
		}
	default:
		return result{
			status:  domain.StatusResolvedOK,
			text:    format.Format(kind, params, resp.Data),
			payload: resp.Data,
			outcome: metrics.OutcomeOK,
		}
	}
}

func (c *Controller) recordQuery(ctx context.Context, entry domain.Entry, params map[string]string) {
	if c.auditor == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.auditor.RecordQuery(auditCtx, &domain.QueryRecord{
		EntryID:    entry.ID,
		UserID:     c.userID,
		SessionID:  c.sessionID,
		Kind:       entry.Kind,
		Parameters: params,
		Status:     domain.StatusPending,
		CreatedAt:  entry.CreatedAt,
	}); err != nil {
		c.logger.Warn("Failed to record oracle query", "entry_id", entry.ID, "error", err)
	}
}

func (c *Controller) completeQuery(ctx context.Context, entryID string, res result, elapsed time.Duration) {
	if c.auditor == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.auditor.CompleteQuery(auditCtx, store.Completion{
		EntryID:      entryID,
		Status:       res.status,
		ErrorCode:    res.errCode,
		ErrorMessage: res.errMessage,
		Latency:      elapsed,
		ResolvedAt:   c.now(),
	}); err != nil {
		c.logger.Warn("Failed to complete oracle query record", "entry_id", entryID, "error", err)
	}
}

func (c *Controller) logEntry(eventType string, entry domain.Entry, meta map[string]any) {
	c.journal.Log(journal.Event{
		Timestamp:  c.now().UTC().Format(time.RFC3339Nano),
		UserID:     c.userID,
		SessionID:  c.sessionID,
		Channel:    c.channel,
		EventType:  eventType,
		EntryID:    entry.ID,
		Kind:       string(entry.Kind),
		Status:     string(entry.Status),
		ContentRaw: entry.Text,
		Meta:       meta,
	})
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActive = c.now()
	c.mu.Unlock()
}

// LastActive returns the time of the latest user interaction.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Pending returns the number of gateway calls in flight.
func (c *Controller) Pending() int64 {
	return c.pending.Load()
}

// Reset clears the transcript. In-flight resolutions for cleared entries are dropped.
func (c *Controller) Reset() {
	c.touch()
	c.store.Reset()
	c.logger.Info("Transcript reset")
}

// Close rejects further submissions. In-flight queries still resolve.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// closeIfIdle closes the controller when it has no query in flight and no
// activity at or after cutoff. Submit refreshes lastActive under the same
// lock it checks closed with, so a racing Submit either keeps the session
// alive or is rejected with ErrClosed.
func (c *Controller) closeIfIdle(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Load() > 0 || !c.lastActive.Before(cutoff) {
		return false
	}
	c.closed = true
	return true
}

// Wait blocks until every in-flight query has resolved or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
