// Package journal writes conversation events as NDJSON files.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Config controls NDJSON conversation logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Event is one journal line.
type Event struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	EventType  string         `json:"event_type"`
	EntryID    string         `json:"entry_id,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Status     string         `json:"status,omitempty"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger records conversation events.
type Logger interface {
	Log(event Event)
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Log implements Logger.
func (Noop) Log(Event) {}

// Close implements Logger.
func (Noop) Close() error { return nil }

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	markdownPattern = regexp.MustCompile(`\*\*|__|` + "`")
	spacePattern    = regexp.MustCompile(`[ \t]+`)
)

// cleanForReadability strips terminal escapes and markdown emphasis.
func cleanForReadability(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	s = markdownPattern.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " | ")
}

type fileLogger struct {
	cfg    Config
	logger *slog.Logger
	queue   chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	files   map[string]*os.File
	global  *os.File
	dropped int64
}

// New returns a Logger that writes asynchronously. When logging is disabled
// it returns Noop.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("journal directory is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:   make(chan Event, cfg.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		files:   make(map[string]*os.File),
	}

	if cfg.GlobalEnabled && cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global journal directory: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open global journal: %w", err)
		}
		l.global = f
	}

	go l.run()
	return l, nil
}

// Log enqueues an event; it never blocks the caller.
func (l *fileLogger) Log(event Event) {
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.queue <- event:
	default:
		l.mu.Lock()
		l.dropped++
		dropped := l.dropped
		l.mu.Unlock()
		l.logger.Warn("Journal queue full, dropping event", "event_type", event.EventType, "dropped", dropped)
	}
}

func (l *fileLogger) run() {
	defer close(l.stopped)
	for {
		select {
		case ev := <-l.queue:
			l.write(ev)
		case <-l.done:
			for {
				select {
				case ev := <-l.queue:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *fileLogger) write(ev Event) {
	line, err := json.Marshal(ev)
	if err != nil {
		l.logger.Warn("Failed to marshal journal event", "error", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.sessionFile(ev.UserID, ev.SessionID)
	if err != nil {
		l.logger.Warn("Failed to open session journal", "user_id", ev.UserID, "session_id", ev.SessionID, "error", err)
	} else if _, err := f.Write(line); err != nil {
		l.logger.Warn("Failed to write session journal", "error", err)
	}

	if l.global != nil {
		if _, err := l.global.Write(line); err != nil {
			l.logger.Warn("Failed to write global journal", "error", err)
		}
	}
}

// sessionFile returns the open file for a user/session. Callers hold l.mu.
func (l *fileLogger) sessionFile(userID, sessionID string) (*os.File, error) {
	userID = safeName(userID, "unknown")
	sessionID = safeName(sessionID, "default")
	key := userID + "/" + sessionID
	if f, ok := l.files[key]; ok {
		return f, nil
	}
	dir := filepath.Join(l.cfg.Dir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, sessionID+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.files[key] = f
	return f, nil
}

// Close drains queued events and closes all files.
func (l *fileLogger) Close() error {
	var errs []error
	l.once.Do(func() {
		close(l.done)
		<-l.stopped
		l.mu.Lock()
		defer l.mu.Unlock()
		for key, f := range l.files {
			if err := f.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", key, err))
			}
		}
		l.files = map[string]*os.File{}
		if l.global != nil {
			if err := l.global.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close global journal: %w", err))
			}
			l.global = nil
		}
	})
	return errors.Join(errs...)
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._:-]`)

func safeName(s, fallback string) string {
	s = unsafeNameChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}
