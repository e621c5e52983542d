package headset

import "errors"

var (
	// ErrConnectionTimeout is returned by Connect when the vendor did not
	// complete its handshake within the configured window.
	ErrConnectionTimeout = errors.New("headset: connection timeout")

	// ErrConnectionRejected is returned by Connect when the vendor reported
	// an explicit error payload during the handshake.
	ErrConnectionRejected = errors.New("headset: connection rejected")

	// ErrNoActiveMapping indicates a command referenced a conversation with
	// no vendor-side counterpart. Adapters log it and resolve the command as
	// a no-op rather than propagating it.
	ErrNoActiveMapping = errors.New("headset: no active call mapping")

	// ErrUnknownVendor indicates a vendor name that is not registered.
	ErrUnknownVendor = errors.New("headset: unknown vendor")
)
