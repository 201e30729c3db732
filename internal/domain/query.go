package domain

import "time"

// QueryRecord is the audit row for one oracle gateway query.
type QueryRecord struct {
	EntryID      string            `json:"entry_id"`
	UserID       string            `json:"user_id"`
	SessionID    string            `json:"session_id"`
	Kind         OracleKind        `json:"kind"`
	Parameters   map[string]string `json:"parameters"`
	Status       Status            `json:"status"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	LatencyMs    int64             `json:"latency_ms"`
	CreatedAt    time.Time         `json:"created_at"`
	ResolvedAt   *time.Time        `json:"resolved_at,omitempty"`
}

// Latency returns the measured gateway latency.
func (q *QueryRecord) Latency() time.Duration {
	return time.Duration(q.LatencyMs) * time.Millisecond
}
