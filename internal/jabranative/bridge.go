// Package jabranative integrates Jabra headsets through the native host
// shell. The host is handed a callback at registration time and pushes
// tagged payloads through it; there is no request/reply correlation.
package jabranative

import "context"

// Payload message tags.
const (
	MsgJabraEvent          = "JabraEvent"
	MsgJabraDeviceAttached = "JabraDeviceAttached"
)

// Payload is one host callback invocation. Event/Value/HIDInput are set
// for JabraEvent, the device fields for JabraDeviceAttached.
type Payload struct {
	Msg string `json:"msg"`

	Event    string `json:"event,omitempty"`
	Value    bool   `json:"value,omitempty"`
	HIDInput string `json:"hidInput,omitempty"`

	DeviceName string `json:"deviceName,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	Attached   bool   `json:"attached,omitempty"`
}

// Registration is the one-time announcement made to the host.
type Registration struct {
	AssetURL                   string `json:"assetURL"`
	SupportsTerminationRequest bool   `json:"supportsTerminationRequest"`
	SupportsUnifiedPreferences bool   `json:"supportsUnifiedPreferences"`
}

// Callback receives host pushes. The host may invoke it from any
// goroutine; implementations must be safe for concurrent use.
type Callback func(Payload)

// HostBridge is the host-provided registration surface. Register may be
// called once per process; the returned Controller drives the headset.
type HostBridge interface {
	Register(ctx context.Context, reg Registration, cb Callback) (Controller, error)
}

// Controller sends commands to the registered headset.
type Controller interface {
	// SendHeadsetEvent pushes one named signal with an on/off value.
	SendHeadsetEvent(ctx context.Context, event string, value bool) error
	// RequestDeviceList asks the host to re-announce attached devices
	// through the callback.
	RequestDeviceList(ctx context.Context) error
}
