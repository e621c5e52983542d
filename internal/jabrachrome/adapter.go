package jabrachrome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"headset-hub/internal/headset"
)

const VendorName = "jabrachrome"

var matchKeywords = []string{"jabra"}

// Extension command strings.
const (
	cmdGetVersion      = "getversion"
	cmdGetDevices      = "getdevices"
	cmdGetActiveDevice = "getactivedevice"
	cmdRing            = "ring"
	cmdOffhook         = "offhook"
	cmdOnhook          = "onhook"
	cmdMute            = "mute"
	cmdUnmute          = "unmute"
	cmdHold            = "hold"
	cmdResume          = "resume"
)

// Inbound reply prefixes, matched before the event translation table.
const (
	prefixDevices      = "Event: devices "
	prefixActiveDevice = "Event: activedevice "
	prefixVersion      = "Event: version"
)

// Options tune the adapter.
type Options struct {
	// ConnectTimeout bounds the wait for the version-query reply.
	ConnectTimeout time.Duration
}

func (o Options) withDefaults() Options {
	out := o
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 5 * time.Second
	}
	return out
}

type Adapter struct {
	opts   Options
	bus    *headset.Bus
	log    *slog.Logger
	bridge Bridge

	// clientID tags every outbound envelope; replies carrying a different
	// nonempty id belong to another adapter instance and are dropped.
	clientID string

	loopOnce sync.Once

	mu             sync.Mutex
	status         headset.Status
	devices        map[string]string
	activeDeviceID string
	conversationID string
	ringing        bool
	muted          bool
	held           bool
	connectDone    chan error
	// announceAttach defers the attach event until the refresh kicked by
	// "device attached" reports the active device; publishing earlier
	// would carry nil or stale device identity.
	announceAttach bool
}

func New(bus *headset.Bus, log *slog.Logger, bridge Bridge, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		opts:     opts.withDefaults(),
		bus:      bus,
		log:      log.With("vendor", VendorName),
		bridge:   bridge,
		clientID: uuid.NewString(),
		status:   headset.Status{State: headset.StateDisconnected},
		devices:  make(map[string]string),
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
	if a.activeDeviceID == "" {
		return headset.DeviceInfo{}, false
	}
	return headset.DeviceInfo{ID: a.activeDeviceID, Name: a.devices[a.activeDeviceID]}, true
}

// Connect sends the version query and waits for the first reply tagged
// with our client id. A reply carrying an error field rejects the connect;
// any other reply resolves it and kicks a device refresh.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.status.State == headset.StateConnected {
		a.mu.Unlock()
		return nil
	}
	a.status = headset.Status{State: headset.StateConnecting}
	done := make(chan error, 1)
	a.connectDone = done
	a.mu.Unlock()

	a.loopOnce.Do(func() { go a.readLoop() })

	if err := a.post(ctx, cmdGetVersion); err != nil {
		a.mu.Lock()
		a.status = headset.Status{State: headset.StateError, ErrorCode: "bridge_unreachable"}
		a.connectDone = nil
		a.mu.Unlock()
		return fmt.Errorf("%w: %v", headset.ErrConnectionRejected, err)
	}

	timeout := time.NewTimer(a.opts.ConnectTimeout)
	defer timeout.Stop()

	select {
	case err := <-done:
		if err != nil {
			a.mu.Lock()
			a.status = headset.Status{State: headset.StateError, ErrorCode: "connection_rejected"}
			a.mu.Unlock()
			return fmt.Errorf("%w: %v", headset.ErrConnectionRejected, err)
		}
		a.refreshDevices(ctx)
		return nil
	case <-timeout.C:
	case <-ctx.Done():
	}

	a.mu.Lock()
	a.status = headset.Status{State: headset.StateDisconnected}
	a.connectDone = nil
	a.mu.Unlock()
	return headset.ErrConnectionTimeout
}

// Disconnect drops connection state only. The extension channel itself
// stays open and device identity survives for reselection.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.status = headset.Status{State: headset.StateDisconnected}
	a.connectDone = nil
	a.mu.Unlock()
	return nil
}

func (a *Adapter) readLoop() {
	for env := range a.bridge.Messages() {
		a.handleEnvelope(env)
	}
}

func (a *Adapter) handleEnvelope(env Envelope) {
	if env.Direction != DirectionIncoming {
		return
	}
	// Correctly tagged envelopes relayed from a foreign context are still
	// not ours.
	if env.Origin != "" && env.Origin != a.bridge.Origin() {
		a.log.Debug("envelope from foreign context ignored", "origin", env.Origin)
		return
	}
	if env.APIClientID != "" && env.APIClientID != a.clientID {
		return
	}

	a.mu.Lock()
	if done := a.connectDone; done != nil {
		a.connectDone = nil
		if env.Error != "" {
			a.mu.Unlock()
			done <- fmt.Errorf("extension reported: %s", env.Error)
			return
		}
		a.status = headset.Status{State: headset.StateConnected}
		a.mu.Unlock()
		done <- nil
		return
	}
	connected := a.status.State == headset.StateConnected
	a.mu.Unlock()

	if !connected {
		return
	}
	if env.Error != "" {
		a.log.Error("extension error reply", "error", env.Error, "request_id", env.RequestID)
		return
	}
	a.dispatch(env.Message)
}

func (a *Adapter) dispatch(msg string) {
	switch {
	case strings.HasPrefix(msg, prefixDevices):
		a.handleDeviceList(strings.TrimPrefix(msg, prefixDevices))
		return
	case strings.HasPrefix(msg, prefixActiveDevice):
		id := strings.TrimSpace(strings.TrimPrefix(msg, prefixActiveDevice))
		a.mu.Lock()
		a.activeDeviceID = id
		name := a.devices[id]
		announce := a.announceAttach
		a.announceAttach = false
		a.mu.Unlock()
		if announce {
			var devPtr *headset.DeviceInfo
			if id != "" {
				devPtr = &headset.DeviceInfo{ID: id, Name: name}
			}
			a.bus.Publish(headset.DeviceAttachedChanged(VendorName, true, devPtr))
		}
		return
	case strings.HasPrefix(msg, prefixVersion):
		a.log.Debug("extension version", "message", msg)
		return
	}

	ctx := context.Background()

	a.mu.Lock()
	conv := a.conversationID
	a.mu.Unlock()

	switch msg {
	case "Event: acceptcall":
		a.mu.Lock()
		a.ringing = false
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceAnsweredCall(VendorName, conv))

	case "Event: endcall":
		a.mu.Lock()
		a.conversationID = ""
		a.ringing = false
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceEndedCall(VendorName, conv))

	case "Event: reject":
		a.mu.Lock()
		a.conversationID = ""
		a.ringing = false
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceRejectedCall(VendorName, conv))

	case "Event: flash":
		// Flash has no on/off state of its own.
		a.bus.Publish(headset.DeviceHoldToggled(VendorName, conv))

	case "Event: mute":
		a.mu.Lock()
		a.muted = true
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, true))

	case "Event: unmute":
		a.mu.Lock()
		a.muted = false
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, false))

	case "Event: device attached":
		a.mu.Lock()
		a.announceAttach = true
		a.mu.Unlock()
		a.refreshDevices(ctx)

	case "Event: device detached":
		a.mu.Lock()
		a.devices = make(map[string]string)
		a.activeDeviceID = ""
		a.announceAttach = false
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceAttachedChanged(VendorName, false, nil))
		a.refreshDevices(ctx)

	default:
		a.log.Warn("untranslatable extension message dropped", "message", msg)
	}
}

func (a *Adapter) handleDeviceList(raw string) {
	var list map[string]string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		a.log.Warn("undecodable device list dropped", "err", err)
		return
	}
	a.mu.Lock()
	a.devices = list
	if len(list) == 0 {
		a.activeDeviceID = ""
	}
	a.mu.Unlock()
}

// refreshDevices re-requests the device and active-device lists.
func (a *Adapter) refreshDevices(ctx context.Context) {
	if err := a.post(ctx, cmdGetDevices); err != nil {
		a.log.Warn("device refresh failed", "err", err)
		return
	}
	if err := a.post(ctx, cmdGetActiveDevice); err != nil {
		a.log.Warn("active device refresh failed", "err", err)
	}
}

func (a *Adapter) post(ctx context.Context, msg string) error {
	return a.bridge.Post(ctx, Envelope{
		Direction:   DirectionOutgoing,
		RequestID:   uuid.NewString(),
		APIClientID: a.clientID,
		Message:     msg,
	})
}

// vanilla drives the device back to baseline (hold off, mute off) so a
// terminated call cannot leave either latched.
func (a *Adapter) vanilla(ctx context.Context) error {
	a.mu.Lock()
	held, muted := a.held, a.muted
	a.held, a.muted = false, false
	a.mu.Unlock()

	if held {
		if err := a.post(ctx, cmdResume); err != nil {
			return err
		}
	}
	if muted {
		if err := a.post(ctx, cmdUnmute); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) IncomingCall(ctx context.Context, call headset.CallInfo) error {
	a.mu.Lock()
	a.conversationID = call.ConversationID
	a.ringing = true
	a.mu.Unlock()
	return a.post(ctx, cmdRing)
}

func (a *Adapter) OutgoingCall(ctx context.Context, call headset.CallInfo) error {
	a.mu.Lock()
	a.conversationID = call.ConversationID
	a.mu.Unlock()
	return a.post(ctx, cmdOffhook)
}

func (a *Adapter) AnswerCall(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	a.ringing = false
	a.mu.Unlock()
	return a.post(ctx, cmdOffhook)
}

func (a *Adapter) RejectCall(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	a.conversationID = ""
	a.ringing = false
	a.mu.Unlock()
	if err := a.vanilla(ctx); err != nil {
		return err
	}
	return a.post(ctx, cmdOnhook)
}

func (a *Adapter) SetMute(ctx context.Context, muted bool) error {
	a.mu.Lock()
	a.muted = muted
	a.mu.Unlock()
	if muted {
		return a.post(ctx, cmdMute)
	}
	return a.post(ctx, cmdUnmute)
}

func (a *Adapter) SetHold(ctx context.Context, conversationID string, held bool) error {
	a.mu.Lock()
	a.held = held
	a.mu.Unlock()
	if held {
		return a.post(ctx, cmdHold)
	}
	return a.post(ctx, cmdResume)
}

// EndCall restores vanilla state and hangs up. With other calls still
// active on the softphone side, device signaling is skipped so the
// headset stays offhook for them.
func (a *Adapter) EndCall(ctx context.Context, conversationID string, hasOtherActiveCalls bool) error {
	a.mu.Lock()
	a.conversationID = ""
	a.ringing = false
	a.mu.Unlock()

	if hasOtherActiveCalls {
		return nil
	}
	if err := a.vanilla(ctx); err != nil {
		return err
	}
	return a.post(ctx, cmdOnhook)
}

func (a *Adapter) EndAllCalls(ctx context.Context) error {
	a.mu.Lock()
	conv := a.conversationID
	a.mu.Unlock()
	if conv == "" {
		return nil
	}
	return a.EndCall(ctx, conv, false)
}
