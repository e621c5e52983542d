package jabrachrome

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBridge relays envelopes over Redis pub/sub, using the direction
// strings as channel names. It lets the extension's content-script relay
// run in a separate process from the daemon.
type RedisBridge struct {
	client *redis.Client
	origin string
	log    *slog.Logger

	sub *redis.PubSub
	in  chan Envelope

	closeOnce sync.Once
}

// NewRedisBridge subscribes to the incoming channel and starts decoding
// envelopes. Origin distinguishes this relay from any other publisher on
// the same channels.
func NewRedisBridge(ctx context.Context, client *redis.Client, origin string, log *slog.Logger) (*RedisBridge, error) {
	if log == nil {
		log = slog.Default()
	}
	sub := client.Subscribe(ctx, DirectionIncoming)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	b := &RedisBridge{
		client: client,
		origin: origin,
		log:    log.With("component", "jabra_bridge"),
		sub:    sub,
		in:     make(chan Envelope, 32),
	}
	go b.readLoop()
	return b, nil
}

func (b *RedisBridge) readLoop() {
	defer close(b.in)
	for msg := range b.sub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Warn("undecodable bridge payload dropped", "err", err)
			continue
		}
		b.in <- env
	}
}

func (b *RedisBridge) Post(ctx context.Context, env Envelope) error {
	if env.Origin == "" {
		env.Origin = b.origin
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	channel := env.Direction
	if channel == "" {
		channel = DirectionOutgoing
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBridge) Messages() <-chan Envelope { return b.in }

func (b *RedisBridge) Origin() string { return b.origin }

func (b *RedisBridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.sub.Close()
	})
	return err
}
