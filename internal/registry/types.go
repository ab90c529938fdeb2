package registry

import "time"

// Status is the verdict recorded for a payload.
type Status string

const (
	// StatusValid marks a payload that passed schema validation and all
	// custom rules.
	StatusValid Status = "valid"

	// StatusInvalid marks a payload that failed schema validation, a custom
	// rule, or schema resolution.
	StatusInvalid Status = "invalid"
)

// Session is the top-level grouping of flows. Exactly one session may be
// current at a time; see Registry.
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Flows maps flow id to flow. Keys are unique; insertion order carries
	// no meaning.
	Flows map[string]*Flow `json:"flows"`
}

// Ended reports whether the session has been ended.
func (s *Session) Ended() bool { return s.EndedAt != nil }

// Flow groups payload records within a session. A flow is owned exclusively
// by its session and holds an append-only payload history.
type Flow struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// History is ordered by append time. Records are never mutated or
	// removed after creation.
	History []PayloadRecord `json:"history"`
}

// Ended reports whether the flow has been ended.
func (f *Flow) Ended() bool { return f.EndedAt != nil }

// PayloadRecord is the immutable outcome of validating one payload.
type PayloadRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`

	// Errors holds human-readable error sentences in report order: schema
	// errors first, then custom rule errors. Empty for valid payloads.
	Errors []string `json:"errors,omitempty"`

	// Payload is the decoded JSON value as ingested. Opaque to the registry.
	Payload any `json:"payload"`
}

// FlatRecord is a payload record joined with its owning session and flow,
// as produced by Registry.FlattenRecords for dashboards and export.
type FlatRecord struct {
	SessionID string        `json:"session_id"`
	FlowID    string        `json:"flow_id"`
	FlowName  string        `json:"flow_name"`
	Record    PayloadRecord `json:"record"`
}
