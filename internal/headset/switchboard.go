package headset

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Auditor records operationally interesting switchboard transitions.
// Implementations must be best-effort; the switchboard never blocks on them.
type Auditor interface {
	LogVendorSelected(ctx context.Context, vendor string)
	LogConnectFailed(ctx context.Context, vendor string, err error)
}

// Switchboard owns the ordered adapter registry, tracks which adapter is
// selected, and forwards commands to it.
//
// Invariants:
// - At most one adapter is selected (and therefore armed to receive
//   forwarded commands) at any time.
// - Changing selection always disconnects the previous selection before
//   connecting the new one; there is no overlap window.
// - A superseded in-flight connect is abandoned: its eventual outcome must
//   not touch current selection state. Continuations check a selection
//   generation counter before acting.
//
// Ownership of the adapters stays with whoever constructed them; the
// switchboard only references the current selection.
type Switchboard struct {
	mu            sync.Mutex
	adapters      []VendorAdapter
	selected      VendorAdapter
	gen           uint64
	connectCancel context.CancelFunc

	bus            *Bus
	log            *slog.Logger
	audit          Auditor
	connectTimeout time.Duration
}

// Options configure a Switchboard.
type Options struct {
	// ConnectTimeout bounds each adapter connect attempt. Defaults to 10s.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
	// Audit is optional.
	Audit Auditor
}

// NewSwitchboard builds a switchboard over an ordered adapter registry.
// Registry order is the label-match priority and the UI default order only;
// it never affects protocol correctness.
func NewSwitchboard(bus *Bus, opts Options, adapters ...VendorAdapter) *Switchboard {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Switchboard{
		adapters:       adapters,
		bus:            bus,
		log:            opts.Logger,
		audit:          opts.Audit,
		connectTimeout: opts.ConnectTimeout,
	}
}

// Adapters returns the registry in priority order.
func (s *Switchboard) Adapters() []VendorAdapter {
	out := make([]VendorAdapter, len(s.adapters))
	copy(out, s.adapters)
	return out
}

// Selected returns the currently selected adapter, or nil.
func (s *Switchboard) Selected() VendorAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectAdapter changes the active adapter. Selecting the already-selected
// adapter is a no-op: no disconnect, no connect, no event.
//
// The selection change is published immediately; the new adapter's connect
// runs asynchronously against the configured timeout, and its failure is
// logged and audited but never returned to the caller. The adapter's own
// ConnectionState reflects the outcome.
func (s *Switchboard) SelectAdapter(ctx context.Context, adapter VendorAdapter) {
	s.mu.Lock()
	if adapter == s.selected {
		s.mu.Unlock()
		return
	}
	prev := s.selected
	if s.connectCancel != nil {
		s.connectCancel()
		s.connectCancel = nil
	}
	s.selected = adapter
	s.gen++
	gen := s.gen

	var connectCtx context.Context
	if adapter != nil {
		connectCtx, s.connectCancel = context.WithTimeout(context.WithoutCancel(ctx), s.connectTimeout)
	}
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Disconnect(ctx); err != nil {
			s.log.Warn("adapter disconnect failed", "vendor", prev.Name(), "err", err)
		}
	}

	vendor := ""
	if adapter != nil {
		vendor = adapter.Name()
	}
	s.bus.Publish(ImplementationChanged(vendor))
	if s.audit != nil {
		s.audit.LogVendorSelected(ctx, vendor)
	}

	if adapter == nil {
		return
	}

	go func() {
		err := adapter.Connect(connectCtx)

		s.mu.Lock()
		stale := gen != s.gen
		if !stale && s.connectCancel != nil {
			s.connectCancel()
			s.connectCancel = nil
		}
		s.mu.Unlock()

		if err == nil {
			return
		}
		if stale {
			s.log.Debug("abandoned connect finished", "vendor", adapter.Name(), "err", err)
			return
		}
		s.log.Error("adapter connect failed", "vendor", adapter.Name(), "err", err)
		if s.audit != nil {
			s.audit.LogConnectFailed(context.WithoutCancel(ctx), adapter.Name(), err)
		}
	}()
}

// SelectVendor selects a registered adapter by vendor name.
func (s *Switchboard) SelectVendor(ctx context.Context, vendor string) error {
	for _, a := range s.adapters {
		if a.Name() == vendor {
			s.SelectAdapter(ctx, a)
			return nil
		}
	}
	return ErrUnknownVendor
}

// SelectForLabel matches a microphone/device label against the registry in
// priority order and selects the first adapter that claims it. No match
// clears the selection. The matched adapter (or nil) is returned.
func (s *Switchboard) SelectForLabel(ctx context.Context, deviceLabel string) VendorAdapter {
	for _, a := range s.adapters {
		if a.Matches(deviceLabel) {
			s.SelectAdapter(ctx, a)
			return a
		}
	}
	s.SelectAdapter(ctx, nil)
	return nil
}

// forward runs fn against the selected adapter. With nothing selected, or a
// selection that is not Connected, it resolves as a silent no-op so callers
// never need to pre-check connection state.
func (s *Switchboard) forward(fn func(VendorAdapter) error) error {
	s.mu.Lock()
	a := s.selected
	s.mu.Unlock()

	if a == nil || a.ConnectionState().State != StateConnected {
		return nil
	}
	return fn(a)
}

func (s *Switchboard) IncomingCall(ctx context.Context, call CallInfo) error {
	return s.forward(func(a VendorAdapter) error { return a.IncomingCall(ctx, call) })
}

func (s *Switchboard) OutgoingCall(ctx context.Context, call CallInfo) error {
	return s.forward(func(a VendorAdapter) error { return a.OutgoingCall(ctx, call) })
}

func (s *Switchboard) AnswerCall(ctx context.Context, conversationID string) error {
	return s.forward(func(a VendorAdapter) error { return a.AnswerCall(ctx, conversationID) })
}

func (s *Switchboard) RejectCall(ctx context.Context, conversationID string) error {
	return s.forward(func(a VendorAdapter) error { return a.RejectCall(ctx, conversationID) })
}

func (s *Switchboard) SetMute(ctx context.Context, muted bool) error {
	return s.forward(func(a VendorAdapter) error { return a.SetMute(ctx, muted) })
}

func (s *Switchboard) SetHold(ctx context.Context, conversationID string, held bool) error {
	return s.forward(func(a VendorAdapter) error { return a.SetHold(ctx, conversationID, held) })
}

func (s *Switchboard) EndCall(ctx context.Context, conversationID string, hasOtherActiveCalls bool) error {
	return s.forward(func(a VendorAdapter) error { return a.EndCall(ctx, conversationID, hasOtherActiveCalls) })
}

func (s *Switchboard) EndAllCalls(ctx context.Context) error {
	return s.forward(func(a VendorAdapter) error { return a.EndAllCalls(ctx) })
}

// Shutdown clears the selection and disconnects whatever was selected.
func (s *Switchboard) Shutdown(ctx context.Context) {
	s.SelectAdapter(ctx, nil)
}
