package domain

import "time"

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleOracle Role = "oracle"
	RoleSystem Role = "system"
)

// Status is the lifecycle state of a transcript entry.
type Status string

const (
	StatusNone          Status = ""
	StatusPending       Status = "pending"
	StatusResolvedOK    Status = "resolved_ok"
	StatusResolvedError Status = "resolved_error"
)

// Resolved reports whether the status is terminal.
func (s Status) Resolved() bool {
	return s == StatusResolvedOK || s == StatusResolvedError
}

// Entry is an immutable snapshot of one transcript line.
type Entry struct {
	ID         string                `json:"id"`
	Role       Role                  `json:"role"`
	Text       string                `json:"text"`
	RawPayload *AggregatedOracleData `json:"raw_payload,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	Status     Status                `json:"status,omitempty"`
	Kind       OracleKind            `json:"kind,omitempty"`
}
