package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/shared"
)

const defaultListLimit = 50

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS oracle_queries (
		entry_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		parameters_json TEXT NOT NULL,
		status TEXT NOT NULL,
		error_code TEXT,
		error_message TEXT,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		resolved_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_oracle_queries_user ON oracle_queries(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_oracle_queries_created ON oracle_queries(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordQuery inserts a pending query row.
func (s *SQLiteStore) RecordQuery(ctx context.Context, q *domain.QueryRecord) error {
	params, err := json.Marshal(q.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	query := `
	INSERT INTO oracle_queries (entry_id, user_id, session_id, kind, parameters_json, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, s.retry, "record_query", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			q.EntryID, q.UserID, q.SessionID, string(q.Kind),
			string(params), string(q.Status), q.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert oracle query: %w", err)
		}
		return nil
	})
}

// CompleteQuery stores the terminal status of a query.
func (s *SQLiteStore) CompleteQuery(ctx context.Context, c Completion) error {
	query := `
	UPDATE oracle_queries
	SET status = ?, error_code = ?, error_message = ?, latency_ms = ?, resolved_at = ?
	WHERE entry_id = ?`

	var errCode, errMsg interface{}
	if c.ErrorCode != "" {
		errCode = c.ErrorCode
	}
	if c.ErrorMessage != "" {
		errMsg = c.ErrorMessage
	}

	return shared.RetryOnConflict(ctx, s.retry, "complete_query", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query,
			string(c.Status), errCode, errMsg, c.Latency.Milliseconds(), c.ResolvedAt.UnixMilli(), c.EntryID,
		)
		if err != nil {
			return fmt.Errorf("complete oracle query: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("CompleteQuery affected 0 rows", "entry_id", c.EntryID)
		}
		return nil
	})
}

// ListRecent returns the newest queries for a user, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.QueryRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT entry_id, user_id, session_id, kind, parameters_json, status,
		       error_code, error_message, latency_ms, created_at, resolved_at
		FROM oracle_queries WHERE user_id = ?
		ORDER BY created_at DESC, entry_id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent oracle queries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close oracle query rows", "error", closeErr)
		}
	}()

	var records []*domain.QueryRecord
	for rows.Next() {
		var (
			rec                      domain.QueryRecord
			kind, status, paramsJSON string
			errCode, errMsg          sql.NullString
			createdAt                int64
			resolvedAt               sql.NullInt64
		)
		if err := rows.Scan(
			&rec.EntryID, &rec.UserID, &rec.SessionID, &kind, &paramsJSON, &status,
			&errCode, &errMsg, &rec.LatencyMs, &createdAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan oracle query row: %w", err)
		}

		rec.Kind = domain.OracleKind(kind)
		rec.Status = domain.Status(status)
		rec.ErrorCode = errCode.String
		rec.ErrorMessage = errMsg.String
		rec.CreatedAt = time.UnixMilli(createdAt)
		if resolvedAt.Valid {
			ts := time.UnixMilli(resolvedAt.Int64)
			rec.ResolvedAt = &ts
		}
		if err := json.Unmarshal([]byte(paramsJSON), &rec.Parameters); err != nil {
			slog.Warn("Discarding malformed query parameters", "entry_id", rec.EntryID, "error", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oracle queries: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes rows created before now minus age.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, errors.New("retention must be positive")
	}
	threshold := time.Now().Add(-age).UnixMilli()

	var deleted int64
	err := shared.RetryOnConflict(ctx, s.retry, "delete_old_queries", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM oracle_queries WHERE created_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete old oracle queries: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
