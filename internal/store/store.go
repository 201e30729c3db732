// Package store provides persistence for the oracle query audit journal.
//
// The journal is operational: it records which queries were issued and how
// they resolved. Transcripts themselves are never persisted.
package store

import (
	"context"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// Repository defines the interface for persisting oracle query records.
type Repository interface {
	// RecordQuery inserts a pending query row keyed by its transcript entry ID.
	RecordQuery(ctx context.Context, q *domain.QueryRecord) error

	// CompleteQuery stores the terminal status of a query.
	CompleteQuery(ctx context.Context, c Completion) error

	// ListRecent returns the newest queries for a user, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.QueryRecord, error)

	// DeleteOlderThan removes rows created before now minus age.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Completion describes how a recorded query resolved.
type Completion struct {
	EntryID      string
	Status       domain.Status
	ErrorCode    string
	ErrorMessage string
	Latency      time.Duration
	ResolvedAt   time.Time
}
