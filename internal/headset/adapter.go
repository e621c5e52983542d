package headset

import "context"

// State is the adapter connection lifecycle state.
// Exactly one of Connecting/Connected holds at a time; ErrorCode is set
// only while the state is StateError.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Status is a snapshot of an adapter's connection state.
type Status struct {
	State     State  `json:"state"`
	ErrorCode string `json:"error_code,omitempty"`
}

// CallInfo describes a softphone-side call being announced to a device.
// ConversationID is opaque to vendors; adapters map it to their own
// transient call identifiers where the wire protocol requires one.
type CallInfo struct {
	ConversationID string `json:"conversation_id"`
	ContactName    string `json:"contact_name,omitempty"`
}

// VendorAdapter is the shared command/event contract each vendor
// integration implements.
//
// Rules:
// - Adapters are long-lived: created once, never destroyed. Connect and
//   Disconnect toggle connection state only; local device state survives
//   deselection.
// - Inbound vendor messages are translated into NormalizedEvents on the
//   shared bus. Malformed or unrecognized messages are logged and dropped,
//   never returned as errors.
// - Command methods that reference a call the vendor no longer knows about
//   log and return nil; the likely cause is a race with the vendor having
//   ended the call already.
type VendorAdapter interface {
	Name() string

	// Matches reports whether a microphone/device label belongs to this
	// vendor. Matching is case-insensitive substring matching against a
	// fixed keyword list.
	Matches(deviceLabel string) bool

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ConnectionState() Status
	ActiveDevice() (DeviceInfo, bool)

	IncomingCall(ctx context.Context, call CallInfo) error
	OutgoingCall(ctx context.Context, call CallInfo) error
	AnswerCall(ctx context.Context, conversationID string) error
	RejectCall(ctx context.Context, conversationID string) error
	SetMute(ctx context.Context, muted bool) error
	SetHold(ctx context.Context, conversationID string, held bool) error
	EndCall(ctx context.Context, conversationID string, hasOtherActiveCalls bool) error
	EndAllCalls(ctx context.Context) error
}
