package headset

import (
	"log/slog"
	"sync"
	"time"
)

// Bus is the single outward NormalizedEvent stream. Every adapter publishes
// into it; the switchboard republishes nothing and rewrites nothing.
//
// Publish is non-blocking: a subscriber that stops draining its channel
// loses events (with a warning) rather than stalling adapter callbacks.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan NormalizedEvent
	nextID int
	buf    int
	closed bool

	dropCount int64

	log *slog.Logger
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int, log *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subs: make(map[int]chan NormalizedEvent),
		buf:  bufferSize,
		log:  log,
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription and closes its channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan NormalizedEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan NormalizedEvent, b.buf)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber. OccurredAt is stamped if unset.
func (b *Bus) Publish(ev NormalizedEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropCount++
			b.log.Warn("event dropped: subscriber buffer full", "kind", ev.Kind, "vendor", ev.Vendor)
		}
	}
}

// DroppedCount returns the number of events dropped due to full buffers.
func (b *Bus) DroppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropCount
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
