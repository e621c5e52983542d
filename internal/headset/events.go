package headset

import "time"

// Kind identifies a normalized, vendor-agnostic event emitted upward
// from any adapter. The softphone only ever sees these kinds; raw vendor
// payloads never cross the adapter boundary.
type Kind string

const (
	KindImplementationChanged Kind = "implementation_changed"
	KindDeviceAnsweredCall    Kind = "device_answered_call"
	KindDeviceRejectedCall    Kind = "device_rejected_call"
	KindDeviceEndedCall       Kind = "device_ended_call"
	KindDeviceMuteChanged     Kind = "device_mute_changed"
	KindDeviceHoldChanged     Kind = "device_hold_changed"
	KindDeviceAttachedChanged Kind = "device_attached_changed"
	KindLoggableEvent         Kind = "loggable_event"
)

// HoldChange distinguishes an explicit hold state from a flash/toggle
// signal sent by hardware that has no separate on/off state.
type HoldChange struct {
	HoldRequested bool `json:"hold_requested"`
	Toggle        bool `json:"toggle"`
}

// DeviceInfo identifies the physically attached unit.
type DeviceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NormalizedEvent is ephemeral; it is published to the bus and never stored.
// Payload fields are kind-specific and zero-valued otherwise.
type NormalizedEvent struct {
	Kind   Kind   `json:"kind"`
	Vendor string `json:"vendor,omitempty"`

	ConversationID string `json:"conversation_id,omitempty"`

	Muted bool        `json:"muted,omitempty"`
	Hold  *HoldChange `json:"hold,omitempty"`

	Attached bool        `json:"attached,omitempty"`
	Device   *DeviceInfo `json:"device,omitempty"`

	// Message carries free-form diagnostics for KindLoggableEvent.
	Message string `json:"message,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

func ImplementationChanged(vendor string) NormalizedEvent {
	return NormalizedEvent{Kind: KindImplementationChanged, Vendor: vendor}
}

func DeviceAnsweredCall(vendor, conversationID string) NormalizedEvent {
	return NormalizedEvent{Kind: KindDeviceAnsweredCall, Vendor: vendor, ConversationID: conversationID}
}

func DeviceRejectedCall(vendor, conversationID string) NormalizedEvent {
	return NormalizedEvent{Kind: KindDeviceRejectedCall, Vendor: vendor, ConversationID: conversationID}
}

func DeviceEndedCall(vendor, conversationID string) NormalizedEvent {
	return NormalizedEvent{Kind: KindDeviceEndedCall, Vendor: vendor, ConversationID: conversationID}
}

func DeviceMuteChanged(vendor string, muted bool) NormalizedEvent {
	return NormalizedEvent{Kind: KindDeviceMuteChanged, Vendor: vendor, Muted: muted}
}

// DeviceHoldChanged reports an explicit hold/resume from the device.
func DeviceHoldChanged(vendor, conversationID string, holdRequested bool) NormalizedEvent {
	return NormalizedEvent{
		Kind:           KindDeviceHoldChanged,
		Vendor:         vendor,
		ConversationID: conversationID,
		Hold:           &HoldChange{HoldRequested: holdRequested},
	}
}

// DeviceHoldToggled reports a flash signal with no on/off state of its own.
func DeviceHoldToggled(vendor, conversationID string) NormalizedEvent {
	return NormalizedEvent{
		Kind:           KindDeviceHoldChanged,
		Vendor:         vendor,
		ConversationID: conversationID,
		Hold:           &HoldChange{Toggle: true},
	}
}

func DeviceAttachedChanged(vendor string, attached bool, device *DeviceInfo) NormalizedEvent {
	return NormalizedEvent{Kind: KindDeviceAttachedChanged, Vendor: vendor, Attached: attached, Device: device}
}

func Loggable(vendor, message string) NormalizedEvent {
	return NormalizedEvent{Kind: KindLoggableEvent, Vendor: vendor, Message: message}
}
