// Package queue defines message payloads exchanged over the message broker.
package queue

// CodeActivityEvent is published after a claim or release commits.
// It carries enough information for downstream consumers to log,
// notify, or feed analytics without querying the primary database.
type CodeActivityEvent struct {
	Action     string `json:"action"` // RESERVED or RELEASED
	Code       string `json:"code"`
	CodeType   string `json:"code_type"`
	UserID     uint64 `json:"user_id"`
	UserName   string `json:"user_name"`
	Team       string `json:"team"`
	Region     string `json:"region,omitempty"`
	TesterName string `json:"tester_name,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
