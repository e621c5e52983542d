package jabrachrome

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBridge is an in-process loopback transport: two linked endpoints
// where one side's Post is the other side's inbound message. It serves
// tests and deployments without a Redis relay.
type MemoryBridge struct {
	origin string

	in   chan Envelope
	peer *MemoryBridge

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryBridgePair links two endpoints sharing one origin. By
// convention the first endpoint is handed to the adapter and the second
// plays the extension side.
func NewMemoryBridgePair(origin string) (*MemoryBridge, *MemoryBridge) {
	a := &MemoryBridge{origin: origin, in: make(chan Envelope, 32), closed: make(chan struct{})}
	b := &MemoryBridge{origin: origin, in: make(chan Envelope, 32), closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

// Post delivers the envelope to the peer endpoint. The origin is stamped
// only when the caller left it empty, so tests can impersonate a foreign
// context.
func (b *MemoryBridge) Post(ctx context.Context, env Envelope) error {
	if env.Origin == "" {
		env.Origin = b.origin
	}
	select {
	case b.peer.in <- env:
		return nil
	case <-b.peer.closed:
		return fmt.Errorf("bridge closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBridge) Messages() <-chan Envelope { return b.in }

func (b *MemoryBridge) Origin() string { return b.origin }

func (b *MemoryBridge) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		close(b.in)
	})
	return nil
}
