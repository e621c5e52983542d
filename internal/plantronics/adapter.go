// Package plantronics integrates Plantronics/Poly headsets through the
// localhost Spokes hub REST API.
package plantronics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"headset-hub/internal/headset"
	"headset-hub/internal/task"
)

const VendorName = "plantronics"

// usbVendorID is the Plantronics USB vendor id as it appears inside
// enumerated microphone labels, e.g. "Plantronics Blackwire 3220 (047f:c056)".
const usbVendorID = "(047f:"

var matchKeywords = []string{"plantronics", "plt", usbVendorID}

// Options tune the adapter. Zero values get defaults.
type Options struct {
	// PluginName identifies this softphone session to the hub.
	PluginName string

	CallEventInterval      time.Duration
	DeviceAttachedInterval time.Duration
	DeviceDetachedInterval time.Duration
}

func (o Options) withDefaults() Options {
	out := o
	if out.PluginName == "" {
		out.PluginName = "headset-hub"
	}
	if out.CallEventInterval <= 0 {
		out.CallEventInterval = time.Second
	}
	// Device presence changes rarely once attached; poll slower then.
	if out.DeviceAttachedInterval <= 0 {
		out.DeviceAttachedInterval = 4 * time.Second
	}
	if out.DeviceDetachedInterval <= 0 {
		out.DeviceDetachedInterval = 2 * time.Second
	}
	return out
}

// Adapter drives the hub session state machine:
// Disconnected -> Connecting (register, verify active, set default route) -> Connected.
//
// Steady state runs two independent self-rescheduling polls (call events and
// device status); each tick schedules the next only after it completes.
type Adapter struct {
	client *Client
	bus    *headset.Bus
	log    *slog.Logger
	opts   Options

	mu       sync.Mutex
	status   headset.Status
	device   *headset.DeviceInfo
	calls    map[int]string // hub call id -> conversation id
	skipPoll bool           // one incoming-event poll cycle is skipped when calls were already active at connect

	callPoll   *task.Runner
	devicePoll *task.Runner
}

func New(client *Client, bus *headset.Bus, log *slog.Logger, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		client: client,
		bus:    bus,
		log:    log.With("vendor", VendorName),
		opts:   opts.withDefaults(),
		status: headset.Status{State: headset.StateDisconnected},
		calls:  make(map[int]string),
	}
	a.callPoll = task.NewRunner(a.pollCallEvents)
	a.devicePoll = task.NewRunner(a.pollDeviceStatus)
	return a
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

func (a *Adapter) setStatus(s headset.Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// Connect registers the plugin session with the hub and starts polling.
// A hub complaint that the plugin is already registered is tolerated on
// every step; the previous session simply resumes.
func (a *Adapter) Connect(ctx context.Context) error {
	a.setStatus(headset.Status{State: headset.StateConnecting})

	steps := []struct {
		path   string
		params url.Values
	}{
		{"/SessionManager/Register", url.Values{"name": {a.opts.PluginName}}},
		{"/SessionManager/IsActive", url.Values{"name": {a.opts.PluginName}, "active": {"true"}}},
		{"/UserPreference/SetDefaultSoftPhone", url.Values{"name": {a.opts.PluginName}}},
	}
	for _, step := range steps {
		_, err := a.client.Get(ctx, step.path, step.params)
		if err == nil {
			continue
		}
		var hubErr *HubError
		if errors.As(err, &hubErr) && hubErr.AlreadyRegistered() {
			a.log.Warn("hub session already registered, continuing", "step", step.path)
			continue
		}
		if ctx.Err() != nil {
			a.setStatus(headset.Status{State: headset.StateDisconnected})
			return fmt.Errorf("%w: %s", headset.ErrConnectionTimeout, step.path)
		}
		a.setStatus(headset.Status{State: headset.StateError, ErrorCode: "connection_rejected"})
		return fmt.Errorf("%w: %s: %v", headset.ErrConnectionRejected, step.path, err)
	}

	// Calls already in flight for this session mean we joined mid-call;
	// skip the next incoming-event poll cycle instead of double-processing.
	if calls, err := a.sessionCalls(ctx); err != nil {
		a.log.Warn("active-call check failed", "err", err)
	} else if len(calls) > 0 {
		a.mu.Lock()
		a.skipPoll = true
		a.mu.Unlock()
	}

	a.setStatus(headset.Status{State: headset.StateConnected})
	a.callPoll.Start(ctx, a.opts.CallEventInterval)
	a.devicePoll.Start(ctx, a.opts.DeviceDetachedInterval)
	return nil
}

// Disconnect stops polling. Device identity is kept so that reselecting the
// adapter later restores the same active device.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.callPoll.Stop()
	a.devicePoll.Stop()
	a.setStatus(headset.Status{State: headset.StateDisconnected})
	return nil
}

// failFromPoll marks the adapter failed and tears both pollers down without
// waiting, because it runs inside a poll tick.
func (a *Adapter) failFromPoll(code string) {
	a.setStatus(headset.Status{State: headset.StateError, ErrorCode: code})
	go func() {
		a.callPoll.Stop()
		a.devicePoll.Stop()
	}()
}

// getWithRetry re-issues a 404-rejected request exactly once with a retry
// flag before giving up; the hub occasionally drops a session route and
// restores it on the flagged retry.
func (a *Adapter) getWithRetry(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	res, err := a.client.Get(ctx, path, params)
	if !errors.Is(err, ErrNotFound) {
		return res, err
	}

	retry := url.Values{}
	for k, v := range params {
		retry[k] = v
	}
	retry.Set("isRetry", "true")
	return a.client.Get(ctx, path, retry)
}

func (a *Adapter) pollCallEvents(ctx context.Context) time.Duration {
	a.mu.Lock()
	skip := a.skipPoll
	a.skipPoll = false
	a.mu.Unlock()
	if skip {
		return a.opts.CallEventInterval
	}

	res, err := a.getWithRetry(ctx, "/CallServices/CallEvents", url.Values{"name": {a.opts.PluginName}})
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		a.log.Error("call event poll failed", "err", err)
		a.failFromPoll("poll_failed")
		return 0
	}

	var events []callEvent
	if len(res) > 0 {
		if err := json.Unmarshal(res, &events); err != nil {
			a.log.Warn("malformed call event payload dropped", "err", err)
			return a.opts.CallEventInterval
		}
	}
	for _, ev := range events {
		a.translateCallEvent(ev)
	}
	return a.opts.CallEventInterval
}

func (a *Adapter) translateCallEvent(ev callEvent) {
	a.mu.Lock()
	conv := a.calls[ev.CallID.ID]
	a.mu.Unlock()

	switch ev.Action {
	case actionCallRinging:
		a.log.Debug("device ringing", "hub_call_id", ev.CallID.ID)
	case actionAcceptCall:
		a.bus.Publish(headset.DeviceAnsweredCall(VendorName, conv))
	case actionRejectCall:
		a.dropCall(ev.CallID.ID)
		a.bus.Publish(headset.DeviceRejectedCall(VendorName, conv))
	case actionTerminateCall:
		a.dropCall(ev.CallID.ID)
		a.bus.Publish(headset.DeviceEndedCall(VendorName, conv))
	case actionMute:
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, true))
	case actionUnmute:
		a.bus.Publish(headset.DeviceMuteChanged(VendorName, false))
	case actionHoldCall:
		a.bus.Publish(headset.DeviceHoldChanged(VendorName, conv, true))
	case actionResumeCall:
		a.bus.Publish(headset.DeviceHoldChanged(VendorName, conv, false))
	default:
		a.log.Warn("unknown hub call event dropped", "action", ev.Action, "action_name", ev.ActionName)
	}
}

type deviceInfo struct {
	UID          string `json:"Uid"`
	ProductName  string `json:"ProductName"`
	InternalName string `json:"InternalName"`
}

func (a *Adapter) pollDeviceStatus(ctx context.Context) time.Duration {
	res, err := a.getWithRetry(ctx, "/DeviceServices/Info", url.Values{})

	var hubErr *HubError
	switch {
	case err == nil:
		var info deviceInfo
		if err := json.Unmarshal(res, &info); err != nil {
			a.log.Warn("malformed device info dropped", "err", err)
			return a.opts.DeviceDetachedInterval
		}
		name := info.ProductName
		if name == "" {
			name = info.InternalName
		}
		a.setDevice(&headset.DeviceInfo{ID: info.UID, Name: name})
		return a.opts.DeviceAttachedInterval

	case errors.As(err, &hubErr):
		// The hub reports an error payload when no device is attached.
		a.setDevice(nil)
		return a.opts.DeviceDetachedInterval

	case errors.Is(err, ErrNotFound):
		if ctx.Err() != nil {
			return 0
		}
		a.log.Error("device status poll failed", "err", err)
		a.failFromPoll("poll_failed")
		return 0

	default:
		if ctx.Err() != nil {
			return 0
		}
		a.log.Warn("device status poll error", "err", err)
		return a.opts.DeviceDetachedInterval
	}
}

func (a *Adapter) setDevice(d *headset.DeviceInfo) {
	a.mu.Lock()
	prev := a.device
	changed := (prev == nil) != (d == nil) || (prev != nil && d != nil && prev.ID != d.ID)
	a.device = d
	a.mu.Unlock()

	if !changed {
		return
	}
	a.bus.Publish(headset.DeviceAttachedChanged(VendorName, d != nil, d))
}

// vendorCallID derives the hub-side numeric call id for a conversation.
// The hub echoes the id back in call events, so it must be stable per
// conversation; 7 decimal digits keeps it inside the hub's accepted range.
func vendorCallID(conversationID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	return int(h.Sum32()%9000000) + 1000000
}

func (a *Adapter) trackCall(conversationID string) int {
	id := vendorCallID(conversationID)
	a.mu.Lock()
	a.calls[id] = conversationID
	a.mu.Unlock()
	return id
}

func (a *Adapter) dropCall(id int) {
	a.mu.Lock()
	delete(a.calls, id)
	a.mu.Unlock()
}

func (a *Adapter) callParams(callID int) url.Values {
	return url.Values{
		"name":   {a.opts.PluginName},
		"callID": {strconv.Itoa(callID)},
	}
}

func (a *Adapter) IncomingCall(ctx context.Context, call headset.CallInfo) error {
	id := a.trackCall(call.ConversationID)
	params := a.callParams(id)
	params.Set("tones", "Unknown")
	params.Set("route", "ToHeadset")
	if call.ContactName != "" {
		params.Set("contact", call.ContactName)
	}
	_, err := a.client.Get(ctx, "/CallServices/IncomingCall", params)
	return err
}

func (a *Adapter) OutgoingCall(ctx context.Context, call headset.CallInfo) error {
	id := a.trackCall(call.ConversationID)
	params := a.callParams(id)
	params.Set("tones", "Unknown")
	params.Set("route", "ToHeadset")
	if call.ContactName != "" {
		params.Set("contact", call.ContactName)
	}
	_, err := a.client.Get(ctx, "/CallServices/OutgoingCall", params)
	return err
}

func (a *Adapter) AnswerCall(ctx context.Context, conversationID string) error {
	_, err := a.client.Get(ctx, "/CallServices/AnswerCall", a.callParams(vendorCallID(conversationID)))
	return err
}

func (a *Adapter) RejectCall(ctx context.Context, conversationID string) error {
	id := vendorCallID(conversationID)
	_, err := a.client.Get(ctx, "/CallServices/TerminateCall", a.callParams(id))
	a.dropCall(id)
	return err
}

func (a *Adapter) SetMute(ctx context.Context, muted bool) error {
	params := url.Values{
		"name":  {a.opts.PluginName},
		"muted": {strconv.FormatBool(muted)},
	}
	_, err := a.client.Get(ctx, "/CallServices/MuteCall", params)
	return err
}

func (a *Adapter) SetHold(ctx context.Context, conversationID string, held bool) error {
	path := "/CallServices/ResumeCall"
	if held {
		path = "/CallServices/HoldCall"
	}
	_, err := a.client.Get(ctx, path, a.callParams(vendorCallID(conversationID)))
	return err
}

func (a *Adapter) EndCall(ctx context.Context, conversationID string, hasOtherActiveCalls bool) error {
	id := vendorCallID(conversationID)
	_, err := a.client.Get(ctx, "/CallServices/TerminateCall", a.callParams(id))
	a.dropCall(id)
	return err
}

// EndAllCalls enumerates the hub's active calls for this plugin session and
// ends each one with its own round trip.
func (a *Adapter) EndAllCalls(ctx context.Context) error {
	calls, err := a.sessionCalls(ctx)
	if err != nil {
		return err
	}
	for _, id := range calls {
		if _, err := a.client.Get(ctx, "/CallServices/TerminateCall", a.callParams(id)); err != nil {
			a.log.Warn("end call failed", "hub_call_id", id, "err", err)
		}
		a.dropCall(id)
	}
	return nil
}

type managerCall struct {
	CallID struct {
		ID int `json:"Id"`
	} `json:"CallId"`
	Source string `json:"Source"`
}

type managerState struct {
	Calls []managerCall `json:"Calls"`
}

// sessionCalls returns hub call ids currently active for this plugin session.
func (a *Adapter) sessionCalls(ctx context.Context) ([]int, error) {
	res, err := a.client.Get(ctx, "/CallServices/CallManagerState", url.Values{})
	if err != nil {
		return nil, err
	}
	var state managerState
	if len(res) > 0 {
		if err := json.Unmarshal(res, &state); err != nil {
			return nil, fmt.Errorf("plantronics: decode call manager state: %w", err)
		}
	}
	var ids []int
	for _, c := range state.Calls {
		if c.Source == a.opts.PluginName {
			ids = append(ids, c.CallID.ID)
		}
	}
	return ids, nil
}
