// Package conversation holds the ordered transcript of a command center session.
//
// The transcript is an append-only log of immutable entry snapshots. Entries
// change only through Update, a replace-by-id reducer that swaps in a new
// snapshot for the entry it targets. Every mutation is published as an Event
// to subscribers and kept in a bounded history for stream replay.
package conversation

import (
	"container/list"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// ErrIllegalTransition is returned when an update would move an entry out of a
// resolved state or back into pending.
var ErrIllegalTransition = errors.New("illegal entry status transition")

const defaultHistorySize = 256

// EventType describes a transcript mutation.
type EventType string

const (
	EventAppended EventType = "appended"
	EventUpdated  EventType = "updated"
	EventReset    EventType = "reset"
)

// Event is a single transcript mutation. Seq increases monotonically per store.
type Event struct {
	Seq   int64        `json:"seq"`
	Type  EventType    `json:"type"`
	Entry domain.Entry `json:"entry"`
	At    time.Time    `json:"at"`
}

// Patch carries the fields Update merges into an entry. Nil fields are left as is.
type Patch struct {
	Text       *string
	Status     *domain.Status
	RawPayload *domain.AggregatedOracleData
}

// Resolve builds the patch that moves a pending entry to a terminal status.
func Resolve(status domain.Status, text string, payload *domain.AggregatedOracleData) Patch {
	return Patch{Text: &text, Status: &status, RawPayload: payload}
}

type subscriber struct {
	ch      chan Event
	dropped int
}

// Store is the transcript of one session. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     []domain.Entry
	index       map[string]int
	seq         int64
	history     *list.List
	historySize int
	subs        map[int64]*subscriber
	nextSubID   int64
	newID       func() string
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHistorySize bounds the number of events kept for replay.
func WithHistorySize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithClock overrides the clock used for entry and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used for dropped-event warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty transcript.
func NewStore(opts ...Option) *Store {
	s := &Store{
		index:       make(map[string]int),
		history:     list.New(),
		historySize: defaultHistorySize,
		subs:        make(map[int64]*subscriber),
		newID:       newEntryID,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newEntryID returns a time-ordered UUIDv7, falling back to v4 if the clock source fails.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Append adds an entry at the end of the transcript and returns its snapshot.
func (s *Store) Append(role domain.Role, text string, status domain.Status, kind domain.OracleKind) domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(role, text, status, kind)
}

// AppendIfEmpty appends only when the transcript has no entries.
func (s *Store) AppendIfEmpty(role domain.Role, text string, status domain.Status) (domain.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) > 0 {
		return domain.Entry{}, false
	}
	return s.appendLocked(role, text, status, ""), true
}

func (s *Store) appendLocked(role domain.Role, text string, status domain.Status, kind domain.OracleKind) domain.Entry {
	entry := domain.Entry{
		ID:        s.newID(),
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
		Status:    status,
		Kind:      kind,
	}
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	s.publishLocked(EventAppended, entry)
	return entry
}

// Update merges patch into the entry with the given id.
// Unknown ids are ignored so late resolutions for a cleared transcript are harmless.
// Resolved entries are frozen; only pending entries may move to a resolved status.
func (s *Store) Update(id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil
	}
	entry := s.entries[i]

	if entry.Status.Resolved() {
		return fmt.Errorf("update entry %s in status %s: %w", id, entry.Status, ErrIllegalTransition)
	}
	if patch.Status != nil {
		next := *patch.Status
		if next != entry.Status && (entry.Status != domain.StatusPending || !next.Resolved()) {
			return fmt.Errorf("update entry %s from %q to %q: %w", id, entry.Status, next, ErrIllegalTransition)
		}
		entry.Status = next
	}
	if patch.Text != nil {
		entry.Text = *patch.Text
	}
	if patch.RawPayload != nil {
		entry.RawPayload = patch.RawPayload
	}

	s.entries[i] = entry
	s.publishLocked(EventUpdated, entry)
	return nil
}

// Get returns the entry snapshot with the given id.
func (s *Store) Get(id string) (domain.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Entry{}, false
	}
	return s.entries[i], true
}

// Snapshot returns a copy of the transcript in creation order.
func (s *Store) Snapshot() []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// SnapshotWithSeq returns the transcript together with the sequence number of
// the last event it reflects.
func (s *Store) SnapshotWithSeq() ([]domain.Entry, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entry, len(s.entries))
	copy(out, s.entries)
	return out, s.seq
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset clears the transcript.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.index = make(map[string]int)
	s.publishLocked(EventReset, domain.Entry{})
}

// Subscribe registers a listener for future events. The returned cancel func
// closes the channel and must be called once the listener is done.
// A subscriber that falls behind by more than buffer events loses them and
// should resync from EventsSince or Snapshot.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	sub := &subscriber{ch: make(chan Event, buffer)}
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// EventsSince returns retained events with Seq greater than after.
// ok is false when events after the given sequence were already evicted,
// in which case the caller must resync from a snapshot.
func (s *Store) EventsSince(after int64) ([]Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if after >= s.seq {
		return nil, true
	}
	front := s.history.Front()
	if front == nil || front.Value.(Event).Seq > after+1 {
		return nil, false
	}

	var missed []Event
	for e := front; e != nil; e = e.Next() {
		ev := e.Value.(Event)
		if ev.Seq > after {
			missed = append(missed, ev)
		}
	}
	return missed, true
}

// Seq returns the sequence number of the latest event.
func (s *Store) Seq() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// publishLocked records and fans out an event. Callers hold s.mu.
func (s *Store) publishLocked(typ EventType, entry domain.Entry) {
	s.seq++
	ev := Event{Seq: s.seq, Type: typ, Entry: entry, At: s.now()}

	s.history.PushBack(ev)
	for s.history.Len() > s.historySize {
		s.history.Remove(s.history.Front())
	}

	for id, sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			s.logger.Warn("Transcript subscriber is behind, dropping event",
				"subscriber_id", id,
				"seq", ev.Seq,
				"dropped", sub.dropped,
			)
		}
	}
}
