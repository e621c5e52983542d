package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - This is operational diagnostics for device integrations, not call
//   history; conversation ids are recorded only where a failure references one.
// - Audit capture is best-effort; do not block device flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Vendor is the adapter the record concerns; empty when the selection
	// was cleared.
	Vendor string `json:"vendor,omitempty" db:"vendor"`

	// Target identifiers (optional, depending on the event type).
	DeviceID       string `json:"device_id,omitempty" db:"device_id"`
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeVendorSelected EventType = "vendor_selected"
	EventTypeConnectFailed  EventType = "connect_failed"
	EventTypeDeviceAttached EventType = "device_attached"
	EventTypeDeviceDetached EventType = "device_detached"
)
