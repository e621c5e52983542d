package plantronics

// Call event action codes reported by the hub's CallEvents queue.
//
// Older hub builds shipped two enumerations that disagreed about device
// removal (34 in one, 3 in the other, colliding with TerminateCall). This
// table is the canonical one: 3 always means TerminateCall, and attachment
// state comes exclusively from the device-status poll, never from call
// events.
const (
	actionCallRinging   = 1
	actionAcceptCall    = 2
	actionTerminateCall = 3
	actionMute          = 11
	actionUnmute        = 12
	actionHoldCall      = 13
	actionResumeCall    = 14
	actionRejectCall    = 18
)

// callEvent is one entry of the CallEvents Result array.
type callEvent struct {
	Action     int    `json:"Action"`
	ActionName string `json:"Action_Name"`
	CallID     struct {
		ID int `json:"Id"`
	} `json:"CallId"`
	CallSource string `json:"CallSource"`
}
