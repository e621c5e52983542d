package jabranative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"headset-hub/internal/headset"
)

const VendorName = "jabranative"

var matchKeywords = []string{"jabra"}

// Headset signal names on the host callback surface.
const (
	eventOffhook = "offhook"
	eventRing    = "ring"
	eventMute    = "mute"
	eventHold    = "hold"
	eventFlash   = "flash"
	eventReject  = "reject"
)

// Options tune the adapter.
type Options struct {
	// AssetURL is announced to the host at registration.
	AssetURL string
	// OffhookDebounce collapses rapid duplicate offhook signals into one
	// logical transition.
	OffhookDebounce time.Duration
}

func (o Options) withDefaults() Options {
	out := o
	if out.OffhookDebounce <= 0 {
		out.OffhookDebounce = 150 * time.Millisecond
	}
	return out
}

type Adapter struct {
	opts Options
	bus  *headset.Bus
	log  *slog.Logger
	host HostBridge

	// Registration happens once for the process lifetime; reconnects
	// reuse the controller.
	registerOnce sync.Once
	registerErr  error
	ctrl         Controller

	debounced func(func())

	mu             sync.Mutex
	status         headset.Status
	devices        map[string]string
	activeDeviceID string
	conversationID string
	ringing        bool
	muted          bool
	held           bool
	// ignoreNextOffhook suppresses the hardware echo of an offhook the
	// app itself just sent.
	ignoreNextOffhook bool
}

func New(bus *headset.Bus, log *slog.Logger, host HostBridge, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	return &Adapter{
		opts:      opts,
		bus:       bus,
		log:       log.With("vendor", VendorName),
		host:      host,
		debounced: debounce.New(opts.OffhookDebounce),
		status:    headset.Status{State: headset.StateDisconnected},
		devices:   make(map[string]string),
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

// Connect registers with the host (once) and asks for the device list.
// A failed device-list refresh clears local device state and logs, but
// the connect still resolves: no attached devices is not a connection
// failure.
func (a *Adapter) Connect(ctx context.Context) error {
	a.registerOnce.Do(func() {
		ctrl, err := a.host.Register(ctx, Registration{
			AssetURL:                   a.opts.AssetURL,
			SupportsTerminationRequest: true,
			SupportsUnifiedPreferences: true,
		}, a.handlePayload)
		if err != nil {
			a.registerErr = err
			return
		}
		a.ctrl = ctrl
	})
	if a.registerErr != nil {
		a.mu.Lock()
		a.status = headset.Status{State: headset.StateError, ErrorCode: "registration_failed"}
		a.mu.Unlock()
		return fmt.Errorf("%w: %v", headset.ErrConnectionRejected, a.registerErr)
	}

	if err := a.ctrl.RequestDeviceList(ctx); err != nil {
		a.log.Warn("device list refresh failed", "err", err)
		a.mu.Lock()
		a.devices = make(map[string]string)
		a.activeDeviceID = ""
		a.mu.Unlock()
	}

	a.mu.Lock()
	a.status = headset.Status{State: headset.StateConnected}
	a.mu.Unlock()
	return nil
}

// Disconnect drops connection state only; the host registration and the
// device identity both survive for reselection.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.status = headset.Status{State: headset.StateDisconnected}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) handlePayload(p Payload) {
	switch p.Msg {
	case MsgJabraDeviceAttached:
		a.handleDeviceAttached(p)
	case MsgJabraEvent:
		a.handleEvent(p)
	default:
		a.log.Warn("unknown host payload dropped", "msg", p.Msg)
	}
}

func (a *Adapter) handleDeviceAttached(p Payload) {
	a.mu.Lock()
	if p.Attached {
		a.devices[p.DeviceID] = p.DeviceName
		a.activeDeviceID = p.DeviceID
		dev := headset.DeviceInfo{ID: p.DeviceID, Name: p.DeviceName}
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceAttachedChanged(VendorName, true, &dev))
		return
	}
	delete(a.devices, p.DeviceID)
	if a.activeDeviceID == p.DeviceID {
		a.activeDeviceID = ""
		for id := range a.devices {
			a.activeDeviceID = id
			break
		}
	}
	a.mu.Unlock()
	a.bus.Publish(headset.DeviceAttachedChanged(VendorName, false, nil))
}

func (a *Adapter) handleEvent(p Payload) {
	switch p.Event {
	case eventOffhook:
		// Hardware repeats offhook transitions in rapid bursts; debounce
		// collapses them into one logical transition.
		value := p.Value
		a.debounced(func() { a.onOffhook(value) })

	case eventMute:
		a.mu.Lock()
		a.muted = p.Value
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, p.Value))

	case eventFlash:
		a.mu.Lock()
		conv := a.conversationID
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceHoldToggled(VendorName, conv))

	case eventReject:
		a.mu.Lock()
		conv := a.conversationID
		a.conversationID = ""
		a.ringing = false
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceRejectedCall(VendorName, conv))

	default:
		a.log.Warn("unknown headset event dropped", "event", p.Event, "hid_input", p.HIDInput)
	}
}

func (a *Adapter) onOffhook(value bool) {
	a.mu.Lock()
	if value {
		if a.ignoreNextOffhook {
			// Echo of the offhook we just sent ourselves.
			a.ignoreNextOffhook = false
			a.mu.Unlock()
			a.log.Debug("own offhook echo suppressed")
			return
		}
		if !a.ringing {
			a.mu.Unlock()
			a.log.Debug("spurious offhook ignored, no call ringing")
			return
		}
		a.ringing = false
		conv := a.conversationID
		a.mu.Unlock()
		a.bus.Publish(headset.DeviceAnsweredCall(VendorName, conv))
		return
	}

	conv := a.conversationID
	a.conversationID = ""
	a.ringing = false
	a.mu.Unlock()
	if conv == "" {
		return
	}
	a.bus.Publish(headset.DeviceEndedCall(VendorName, conv))
}

func (a *Adapter) send(ctx context.Context, event string, value bool) error {
	if a.ctrl == nil {
		a.log.Warn("command before registration dropped", "event", event)
		return nil
	}
	return a.ctrl.SendHeadsetEvent(ctx, event, value)
}

func (a *Adapter) IncomingCall(ctx context.Context, call headset.CallInfo) error {
	a.mu.Lock()
	a.conversationID = call.ConversationID
	a.ringing = true
	a.mu.Unlock()
	return a.send(ctx, eventRing, true)
}

func (a *Adapter) OutgoingCall(ctx context.Context, call headset.CallInfo) error {
	a.mu.Lock()
	a.conversationID = call.ConversationID
	a.ignoreNextOffhook = true
	a.mu.Unlock()
	return a.send(ctx, eventOffhook, true)
}

// AnswerCall arms the echo guard before sending offhook: the hardware
// echoes the very state being set, and without the guard that echo would
// re-trigger a device answer.
func (a *Adapter) AnswerCall(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	a.ringing = false
	a.ignoreNextOffhook = true
	a.mu.Unlock()
	return a.send(ctx, eventOffhook, true)
}

func (a *Adapter) RejectCall(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	a.conversationID = ""
	a.ringing = false
	a.mu.Unlock()
	return a.send(ctx, eventRing, false)
}

func (a *Adapter) SetMute(ctx context.Context, muted bool) error {
	a.mu.Lock()
	a.muted = muted
	a.mu.Unlock()
	return a.send(ctx, eventMute, muted)
}

func (a *Adapter) SetHold(ctx context.Context, conversationID string, held bool) error {
	a.mu.Lock()
	a.held = held
	a.mu.Unlock()
	return a.send(ctx, eventHold, held)
}

func (a *Adapter) EndCall(ctx context.Context, conversationID string, hasOtherActiveCalls bool) error {
	a.mu.Lock()
	a.conversationID = ""
	a.ringing = false
	a.mu.Unlock()
	if hasOtherActiveCalls {
		return nil
	}
	return a.send(ctx, eventOffhook, false)
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
