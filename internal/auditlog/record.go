package auditlog

import "time"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Triggers name what started an operation.
const (
	TriggerCLI   = "cli"
	TriggerEvent = "event"
	TriggerSweep = "sweep"
)

// AuditEntry is one persisted audit event: either a CLI command or a
// single remote attempt made by the action queue.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Command    string    `json:"command"`
	Args       string    `json:"args,omitempty"`
	Trigger    string    `json:"trigger,omitempty"`
	OrderRef   string    `json:"order_ref,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Attempt    int       `json:"attempt,omitempty"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}
