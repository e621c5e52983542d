package sennheiser

// The HeadSetup service speaks JSON text frames over a localhost wss
// socket. Every frame carries an Event name plus an EventType
// discriminator; outbound frames are always Requests, inbound frames are
// Notifications or Acknowledgements.

const (
	EventTypeRequest         = "Request"
	EventTypeNotification    = "Notification"
	EventTypeAcknowledgement = "Acknowledgement"
)

// Handshake and session events.
const (
	EventSocketConnected     = "SocketConnected"
	EventEstablishConnection = "EstablishConnection"
	EventSPLogin             = "SPLogin"
	EventSystemInformation   = "SystemInformation"
	EventTerminateConnection = "TerminateConnection"
)

// Call control events.
const (
	EventIncomingCall         = "IncomingCall"
	EventOutgoingCall         = "OutgoingCall"
	EventIncomingCallAccepted = "IncomingCallAccepted"
	EventIncomingCallRejected = "IncomingCallRejected"
	EventEndCall              = "EndCall"
	EventCallEnded            = "CallEnded"
	EventInCallAccepted       = "InCallAccepted"
)

// Hold and mute carry directional event names: the suffix says who
// initiated the action, so an echo of our own request is distinguishable
// from a user pressing a button on the headset.
const (
	EventMuteFromApp       = "MuteFromApp"
	EventUnmuteFromApp     = "UnmuteFromApp"
	EventMuteFromHeadset   = "MuteFromHeadset"
	EventUnmuteFromHeadset = "UnmuteFromHeadset"
	EventHoldFromApp       = "HoldFromApp"
	EventResumeFromApp     = "ResumeFromApp"
	EventHoldFromHeadset   = "HoldFromHeadset"
	EventResumeFromHeadset = "ResumeFromHeadset"
)

// Message is a wire frame. Registration-only fields (SPName, SPIconImage,
// feature flags) are populated on the SPLogin request and omitted elsewhere.
type Message struct {
	Event      string `json:"Event"`
	EventType  string `json:"EventType"`
	CallID     int    `json:"CallID,omitempty"`
	ReturnCode int    `json:"ReturnCode,omitempty"`

	SPName         string `json:"SPName,omitempty"`
	SPIconImage    string `json:"SPIconImage,omitempty"`
	RedialSupport  bool   `json:"RedialSupport,omitempty"`
	OffHookSupport bool   `json:"OffHookSupport,omitempty"`
	MuteSupport    bool   `json:"MuteSupport,omitempty"`

	HeadsetName string `json:"HeadsetName,omitempty"`
	HeadsetType string `json:"HeadsetType,omitempty"`
}
