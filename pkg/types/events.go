package types

import "time"

// PolicyInfo captures the policy side of an audited decision.
type PolicyInfo struct {
	Decision          Decision `json:"decision,omitempty"`
	EffectiveDecision Decision `json:"effective_decision,omitempty"`
	Rule              string   `json:"rule,omitempty"`
	Source            string   `json:"source,omitempty"`
	Message           string   `json:"message,omitempty"`
}

// Event is an audit record: a policy decision, a gate block, or a
// confirmation resolution.
type Event struct {
	ID        string      `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	CallID    string      `json:"call_id,omitempty"`
	Tool      string      `json:"tool,omitempty"`
	Policy    *PolicyInfo `json:"policy,omitempty"`

	// Common convenience fields for indexing/search.
	ServerID  string `json:"server_id,omitempty"`
	BlockType string `json:"block_type,omitempty"`
	Outcome   string `json:"outcome,omitempty"`

	Fields map[string]any `json:"fields,omitempty"`
}

// Well-known event types.
const (
	EventPolicyDecision       = "policy_decision"
	EventServerBlocked        = "server_blocked"
	EventConfirmationEnqueued = "confirmation_enqueued"
	EventConfirmationResolved = "confirmation_resolved"
)

// EventQuery selects audit events from a store.
type EventQuery struct {
	SessionID string
	CallID    string
	Types     []string
	Since     *time.Time
	Until     *time.Time

	Decision *Decision

	Limit  int
	Offset int
	Asc    bool
}
