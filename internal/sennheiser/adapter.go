// Package sennheiser integrates Sennheiser/EPOS headsets through the local
// HeadSetup WebSocket service.
package sennheiser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"headset-hub/internal/headset"
)

const VendorName = "sennheiser"

var matchKeywords = []string{"sennheiser", "senn", "epos"}

// Handshake phases. The state machine is driven entirely by inbound
// messages, in strict order; anything received before SocketConnected is
// invalid and ignored.
type phase int

const (
	phaseIdle phase = iota
	phaseSocketConnected
	phaseEstablished
	phaseLoggedIn
)

// Options tune the adapter.
type Options struct {
	// URL is the HeadSetup socket address, e.g. wss://127.0.0.1:41088.
	URL string
	// SPName and SPIconImage identify the softphone on the SPLogin request.
	SPName      string
	SPIconImage string
}

func (o Options) withDefaults() Options {
	out := o
	if out.URL == "" {
		out.URL = "wss://127.0.0.1:41088"
	}
	if out.SPName == "" {
		out.SPName = "HeadsetHub"
	}
	return out
}

type Adapter struct {
	opts Options
	bus  *headset.Bus
	log  *slog.Logger

	dialer *websocket.Dialer

	mu          sync.Mutex
	status      headset.Status
	conn        *websocket.Conn
	phase       phase
	device      *headset.DeviceInfo
	connectDone chan error

	writeMu sync.Mutex

	calls *CallMap
}

func New(bus *headset.Bus, log *slog.Logger, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		opts:   opts.withDefaults(),
		bus:    bus,
		log:    log.With("vendor", VendorName),
		dialer: websocket.DefaultDialer,
		status: headset.Status{State: headset.StateDisconnected},
		calls:  NewCallMap(),
	}
}

func (a *Adapter) Name() string { return VendorName }

func (a *Adapter) Matches(deviceLabel string) bool {
	l := strings.ToLower(deviceLabel)
	for _, kw := range matchKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

func (a *Adapter) ConnectionState() headset.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Adapter) ActiveDevice() (headset.DeviceInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.device == nil {
		return headset.DeviceInfo{}, false
	}
	return *a.device, true
}

// Connect dials the socket and then waits for the inbound-driven handshake
// to reach SPLogin. The service opens the conversation by sending
// SocketConnected; the adapter never speaks first.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.status.State == headset.StateConnected {
		a.mu.Unlock()
		return nil
	}
	a.status = headset.Status{State: headset.StateConnecting}
	a.phase = phaseIdle
	done := make(chan error, 1)
	a.connectDone = done
	a.mu.Unlock()

	conn, _, err := a.dialer.DialContext(ctx, a.opts.URL, nil)
	if err != nil {
		a.mu.Lock()
		a.status = headset.Status{State: headset.StateError, ErrorCode: "dial_failed"}
		a.connectDone = nil
		a.mu.Unlock()
		return fmt.Errorf("%w: %v", headset.ErrConnectionRejected, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	go a.readLoop(conn)

	select {
	case err := <-done:
		// A failure here came through teardown, which already settled the
		// socket and status.
		return err
	case <-ctx.Done():
		a.teardown(headset.Status{State: headset.StateDisconnected})
		return headset.ErrConnectionTimeout
	}
}

// Disconnect sends TerminateConnection and closes the socket. Disconnecting
// while not connected is a no-op. Device identity survives for reselection.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return nil
	}

	if err := a.send(Message{Event: EventTerminateConnection, EventType: EventTypeRequest}); err != nil {
		a.log.Debug("terminate request failed", "err", err)
	}
	a.teardown(headset.Status{State: headset.StateDisconnected})
	return nil
}

// teardown closes the socket only if the reference is still held and drops
// it, so a racing close cannot close twice. A connect still waiting on the
// handshake is failed immediately rather than left to run out its deadline.
func (a *Adapter) teardown(final headset.Status) {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.phase = phaseIdle
	a.status = final
	done := a.connectDone
	a.connectDone = nil
	a.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		done <- fmt.Errorf("%w: socket closed during handshake", headset.ErrConnectionRejected)
	}
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			a.mu.Lock()
			current := a.conn == conn
			a.mu.Unlock()
			if current {
				a.log.Warn("socket read failed", "err", err)
				a.teardown(headset.Status{State: headset.StateError, ErrorCode: "socket_closed"})
			}
			return
		}
		a.handleMessage(msg)
	}
}

func (a *Adapter) handleMessage(msg Message) {
	// A nonzero ReturnCode is an error no matter the event kind. Logged,
	// never surfaced: one bad frame must not abort a healthy device.
	if msg.ReturnCode != 0 {
		a.log.Error("vendor error frame", "event", msg.Event, "return_code", msg.ReturnCode)
		return
	}

	a.mu.Lock()
	ph := a.phase
	a.mu.Unlock()

	if ph == phaseIdle && msg.Event != EventSocketConnected {
		a.log.Debug("frame before SocketConnected ignored", "event", msg.Event)
		return
	}

	switch msg.Event {
	case EventSocketConnected:
		a.mu.Lock()
		a.phase = phaseSocketConnected
		a.mu.Unlock()
		a.sendOrLog(Message{Event: EventEstablishConnection, EventType: EventTypeRequest})

	case EventEstablishConnection:
		a.mu.Lock()
		if a.phase != phaseSocketConnected {
			a.mu.Unlock()
			a.log.Debug("out-of-order EstablishConnection ignored")
			return
		}
		a.phase = phaseEstablished
		a.mu.Unlock()
		a.sendOrLog(Message{
			Event:          EventSPLogin,
			EventType:      EventTypeRequest,
			SPName:         a.opts.SPName,
			SPIconImage:    a.opts.SPIconImage,
			RedialSupport:  false,
			OffHookSupport: true,
			MuteSupport:    true,
		})

	case EventSPLogin:
		a.mu.Lock()
		if a.phase != phaseEstablished {
			a.mu.Unlock()
			a.log.Debug("out-of-order SPLogin ignored")
			return
		}
		a.phase = phaseLoggedIn
		a.status = headset.Status{State: headset.StateConnected}
		done := a.connectDone
		a.connectDone = nil
		a.mu.Unlock()
		if done != nil {
			done <- nil
		}
		a.sendOrLog(Message{Event: EventSystemInformation, EventType: EventTypeRequest})

	case EventSystemInformation:
		if msg.HeadsetName == "" {
			return
		}
		a.mu.Lock()
		a.device = &headset.DeviceInfo{ID: msg.HeadsetName, Name: msg.HeadsetName}
		dev := *a.device
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceAttachedChanged(VendorName, true, &dev))

	case EventInCallAccepted:
		conv, ok := a.calls.ConversationID(msg.CallID)
		if !ok {
			a.log.Warn("accepted frame for unknown call", "call_id", msg.CallID)
			return
		}
		a.bus.Publish(headset.DeviceAnsweredCall(VendorName, conv))

	case EventIncomingCallRejected:
		conv, ok := a.calls.RemoveByVendor(msg.CallID)
		if !ok {
			return
		}
		a.bus.Publish(headset.DeviceRejectedCall(VendorName, conv))

	case EventCallEnded:
		conv, ok := a.calls.RemoveByVendor(msg.CallID)
		if !ok {
			// Already cleared from our side; stale end is a no-op.
			return
		}
		a.bus.Publish(headset.DeviceEndedCall(VendorName, conv))

	case EventMuteFromHeadset:
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, true))
	case EventUnmuteFromHeadset:
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, false))

	case EventHoldFromHeadset:
		conv, _ := a.calls.ConversationID(msg.CallID)
		a.bus.Publish(headset.DeviceHoldChanged(VendorName, conv, true))
	case EventResumeFromHeadset:
		conv, _ := a.calls.ConversationID(msg.CallID)
		a.bus.Publish(headset.DeviceHoldChanged(VendorName, conv, false))

	case EventMuteFromApp, EventUnmuteFromApp, EventHoldFromApp, EventResumeFromApp:
		// Acknowledgement of our own request. The initiator already applied
		// the state optimistically; echoing it would double-toggle.
		a.log.Debug("own-action acknowledgement swallowed", "event", msg.Event)

	case EventTerminateConnection:
		a.teardown(headset.Status{State: headset.StateDisconnected})

	default:
		a.log.Warn("unknown vendor frame dropped", "event", msg.Event, "event_type", msg.EventType)
	}
}

func (a *Adapter) send(msg Message) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("sennheiser: not connected")
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (a *Adapter) sendOrLog(msg Message) {
	if err := a.send(msg); err != nil {
		a.log.Error("send failed", "event", msg.Event, "err", err)
	}
}

// request sends a call-control request for an existing mapping. A missing
// mapping logs and no-ops: the vendor most likely ended the call already.
func (a *Adapter) request(event, conversationID string) error {
	id, ok := a.calls.VendorID(conversationID)
	if !ok {
		a.log.Warn("no active call mapping", "event", event, "conversation_id", conversationID)
		return nil
	}
	return a.send(Message{Event: event, EventType: EventTypeRequest, CallID: id})
}

func (a *Adapter) IncomingCall(ctx context.Context, call headset.CallInfo) error {
	id := a.calls.Allocate(call.ConversationID)
	return a.send(Message{Event: EventIncomingCall, EventType: EventTypeRequest, CallID: id})
}

func (a *Adapter) OutgoingCall(ctx context.Context, call headset.CallInfo) error {
	id := a.calls.Allocate(call.ConversationID)
	return a.send(Message{Event: EventOutgoingCall, EventType: EventTypeRequest, CallID: id})
}

func (a *Adapter) AnswerCall(ctx context.Context, conversationID string) error {
	return a.request(EventIncomingCallAccepted, conversationID)
}

func (a *Adapter) RejectCall(ctx context.Context, conversationID string) error {
	err := a.request(EventIncomingCallRejected, conversationID)
	a.calls.RemoveByConversation(conversationID)
	return err
}

func (a *Adapter) SetMute(ctx context.Context, muted bool) error {
	event := EventUnmuteFromApp
	if muted {
		event = EventMuteFromApp
	}
	return a.send(Message{Event: event, EventType: EventTypeRequest})
}

func (a *Adapter) SetHold(ctx context.Context, conversationID string, held bool) error {
	event := EventResumeFromApp
	if held {
		event = EventHoldFromApp
	}
	return a.request(event, conversationID)
}

func (a *Adapter) EndCall(ctx context.Context, conversationID string, hasOtherActiveCalls bool) error {
	err := a.request(EventEndCall, conversationID)
	a.calls.RemoveByConversation(conversationID)
	return err
}

func (a *Adapter) EndAllCalls(ctx context.Context) error {
	for conv := range a.calls.Pairs() {
		if err := a.EndCall(ctx, conv, false); err != nil {
			a.log.Warn("end call failed", "conversation_id", conv, "err", err)
		}
	}
	return nil
}
