// Package jabrachrome integrates Jabra headsets through the browser
// extension message channel. Commands and replies travel as tagged
// envelopes over a message bridge; the wire payloads are the extension's
// raw command and event strings.
package jabrachrome

import "context"

// Channel discriminators. Outbound envelopes carry the page-script
// direction, inbound ones the content-script direction; anything else on
// the bridge is not ours.
const (
	DirectionOutgoing = "jabra-headset-extension-from-page-script"
	DirectionIncoming = "jabra-headset-extension-from-content-script"
)

// Envelope is one bridge message. RequestID correlates a reply to its
// command; APIClientID scopes replies to one adapter instance. Origin
// identifies the transport context the envelope came from, so envelopes
// relayed from a foreign context can be ignored even when correctly
// tagged.
type Envelope struct {
	Direction   string `json:"direction"`
	RequestID   string `json:"requestId,omitempty"`
	APIClientID string `json:"apiClientId,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

// Bridge is the transport the adapter posts envelopes through. Messages
// delivers inbound envelopes until Close; the channel is closed afterwards.
type Bridge interface {
	Post(ctx context.Context, env Envelope) error
	Messages() <-chan Envelope
	Origin() string
	Close() error
}
