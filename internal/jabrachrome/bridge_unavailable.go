package jabrachrome

import (
	"context"
	"errors"
)

// UnavailableBridge stands in when no extension transport is configured.
// Posts fail, so the adapter reports a connect rejection instead of
// waiting out its timeout.
type UnavailableBridge struct{}

var closedEnvelopes = func() chan Envelope {
	ch := make(chan Envelope)
	close(ch)
	return ch
}()

func (UnavailableBridge) Post(ctx context.Context, env Envelope) error {
	return errors.New("extension bridge not configured")
}

func (UnavailableBridge) Messages() <-chan Envelope { return closedEnvelopes }

func (UnavailableBridge) Origin() string { return "" }

func (UnavailableBridge) Close() error { return nil }
