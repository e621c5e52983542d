package sennheiser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"headset-hub/internal/headset"
)

func TestAdapter_ImplementsVendorAdapter(t *testing.T) {
	var _ headset.VendorAdapter = (*Adapter)(nil)
}

// fakeService emulates the HeadSetup socket: it opens with SocketConnected
// and acknowledges handshake requests in order.
type fakeService struct {
	t *testing.T

	srv *httptest.Server

	mu   sync.Mutex
	conn *websocket.Conn

	received chan Message
	// handshake controls whether requests are auto-acknowledged.
	handshake bool
	// skipGreeting suppresses the initial SocketConnected frame.
	skipGreeting bool
	// closeOnConnect drops the socket right after the upgrade.
	closeOnConnect bool
	// greetWith overrides the first frame sent to the adapter.
	greetWith []Message
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{t: t, received: make(chan Message, 32), handshake: true}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		if f.closeOnConnect {
			_ = conn.Close()
			return
		}

		if len(f.greetWith) > 0 {
			for _, m := range f.greetWith {
				f.send(m)
			}
		} else if !f.skipGreeting {
			f.send(Message{Event: EventSocketConnected, EventType: EventTypeNotification})
		}

		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if f.handshake {
				switch msg.Event {
				case EventEstablishConnection:
					f.send(Message{Event: EventEstablishConnection, EventType: EventTypeAcknowledgement})
					continue
				case EventSPLogin:
					f.send(Message{Event: EventSPLogin, EventType: EventTypeAcknowledgement})
					continue
				case EventSystemInformation:
					continue
				}
			}
			f.received <- msg
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeService) send(msg Message) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		f.t.Errorf("send before client connected")
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		f.t.Errorf("service send failed: %v", err)
	}
}

func (f *fakeService) expect(t *testing.T, event string) Message {
	t.Helper()
	select {
	case msg := <-f.received:
		if msg.Event != event {
			t.Fatalf("expected %s request, got %+v", event, msg)
		}
		if msg.EventType != EventTypeRequest {
			t.Fatalf("expected EventType Request, got %+v", msg)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", event)
		return Message{}
	}
}

func newConnectedAdapter(t *testing.T, f *fakeService) (*Adapter, <-chan headset.NormalizedEvent) {
	t.Helper()
	bus := headset.NewBus(32, slog.Default())
	t.Cleanup(bus.Close)
	events, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	a := New(bus, slog.Default(), Options{URL: f.url()})
	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelCtx()
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })
	return a, events
}

func TestConnect_HandshakeReachesConnected(t *testing.T) {
	f := newFakeService(t)
	a, _ := newConnectedAdapter(t, f)

	if st := a.ConnectionState(); st.State != headset.StateConnected {
		t.Fatalf("expected connected, got %+v", st)
	}
}

func TestConnect_TimesOutWithoutGreeting(t *testing.T) {
	f := newFakeService(t)
	f.skipGreeting = true

	bus := headset.NewBus(8, slog.Default())
	defer bus.Close()
	a := New(bus, slog.Default(), Options{URL: f.url()})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := a.Connect(ctx); err == nil {
		t.Fatalf("expected timeout error")
	}
	if st := a.ConnectionState(); st.State == headset.StateConnecting {
		t.Fatalf("must not remain connecting, got %+v", st)
	}
}

func TestConnect_SocketClosedMidHandshakeFailsFast(t *testing.T) {
	f := newFakeService(t)
	f.closeOnConnect = true

	bus := headset.NewBus(8, slog.Default())
	defer bus.Close()
	a := New(bus, slog.Default(), Options{URL: f.url()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	err := a.Connect(ctx)
	if err == nil {
		t.Fatalf("expected connect failure")
	}
	if errors.Is(err, headset.ErrConnectionTimeout) {
		t.Fatalf("dead socket must not be reported as a timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("connect burned %v instead of failing fast", elapsed)
	}
	if st := a.ConnectionState(); st.State != headset.StateError {
		t.Fatalf("expected error state, got %+v", st)
	}
}

func TestConnect_FramesBeforeSocketConnectedIgnored(t *testing.T) {
	f := newFakeService(t)
	// An out-of-order login frame arrives first; the real greeting follows.
	f.greetWith = []Message{
		{Event: EventSPLogin, EventType: EventTypeAcknowledgement},
		{Event: EventSocketConnected, EventType: EventTypeNotification},
	}

	a, _ := newConnectedAdapter(t, f)
	if st := a.ConnectionState(); st.State != headset.StateConnected {
		t.Fatalf("expected connected, got %+v", st)
	}
}

func TestIncomingCall_AcceptedProducesExactlyOneAnswerEvent(t *testing.T) {
	f := newFakeService(t)
	a, events := newConnectedAdapter(t, f)

	if err := a.IncomingCall(context.Background(), headset.CallInfo{ConversationID: "call-1"}); err != nil {
		t.Fatalf("incoming call failed: %v", err)
	}

	req := f.expect(t, EventIncomingCall)
	if req.CallID < 1000000 || req.CallID > 9999999 {
		t.Fatalf("expected freshly generated 7-digit CallID, got %d", req.CallID)
	}

	f.send(Message{Event: EventInCallAccepted, EventType: EventTypeNotification, CallID: req.CallID})

	select {
	case ev := <-events:
		if ev.Kind != headset.KindDeviceAnsweredCall || ev.ConversationID != "call-1" {
			t.Fatalf("expected DeviceAnsweredCall for call-1, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected answer event")
	}

	select {
	case ev := <-events:
		t.Fatalf("expected exactly one event, got extra %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIncomingThenEndLeavesNoMapping(t *testing.T) {
	f := newFakeService(t)
	a, _ := newConnectedAdapter(t, f)

	if err := a.IncomingCall(context.Background(), headset.CallInfo{ConversationID: "call-1"}); err != nil {
		t.Fatalf("incoming call failed: %v", err)
	}
	req := f.expect(t, EventIncomingCall)

	if err := a.EndCall(context.Background(), "call-1", false); err != nil {
		t.Fatalf("end call failed: %v", err)
	}
	f.expect(t, EventEndCall)

	if _, ok := a.calls.VendorID("call-1"); ok {
		t.Fatalf("expected no residual forward mapping")
	}
	if _, ok := a.calls.ConversationID(req.CallID); ok {
		t.Fatalf("expected no residual reverse mapping")
	}
}

func TestAnswerCall_NoMappingIsLoggedNoop(t *testing.T) {
	f := newFakeService(t)
	a, _ := newConnectedAdapter(t, f)

	if err := a.AnswerCall(context.Background(), "never-announced"); err != nil {
		t.Fatalf("expected graceful no-op, got %v", err)
	}
	select {
	case msg := <-f.received:
		t.Fatalf("expected no request on missing mapping, got %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHoldAcknowledgementSwallowed(t *testing.T) {
	f := newFakeService(t)
	a, events := newConnectedAdapter(t, f)

	if err := a.IncomingCall(context.Background(), headset.CallInfo{ConversationID: "call-1"}); err != nil {
		t.Fatalf("incoming call failed: %v", err)
	}
	req := f.expect(t, EventIncomingCall)

	// Ack for the app's own hold must not be re-surfaced; a headset-side
	// hold must.
	f.send(Message{Event: EventHoldFromApp, EventType: EventTypeAcknowledgement, CallID: req.CallID})
	f.send(Message{Event: EventHoldFromHeadset, EventType: EventTypeNotification, CallID: req.CallID})

	select {
	case ev := <-events:
		if ev.Kind != headset.KindDeviceHoldChanged || ev.Hold == nil || !ev.Hold.HoldRequested {
			t.Fatalf("expected headset-initiated hold event, got %+v", ev)
		}
		if ev.ConversationID != "call-1" {
			t.Fatalf("expected hold for call-1, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected hold event")
	}

	select {
	case ev := <-events:
		t.Fatalf("acknowledgement must be swallowed, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNonzeroReturnCodeLoggedNotSurfaced(t *testing.T) {
	f := newFakeService(t)
	_, events := newConnectedAdapter(t, f)

	f.send(Message{Event: EventMuteFromHeadset, EventType: EventTypeNotification, ReturnCode: 13})

	select {
	case ev := <-events:
		t.Fatalf("error frame must not surface, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnect_WhenNotConnectedIsNoop(t *testing.T) {
	bus := headset.NewBus(8, slog.Default())
	defer bus.Close()
	a := New(bus, slog.Default(), Options{URL: "ws://127.0.0.1:1"})

	if err := a.Disconnect(context.Background()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestDisconnect_SendsTerminateConnection(t *testing.T) {
	f := newFakeService(t)
	a, _ := newConnectedAdapter(t, f)

	if err := a.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	f.expect(t, EventTerminateConnection)

	if st := a.ConnectionState(); st.State != headset.StateDisconnected {
		t.Fatalf("expected disconnected, got %+v", st)
	}
}
