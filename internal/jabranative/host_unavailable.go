package jabranative

import (
	"context"
	"errors"
)

// UnavailableHost stands in when no native host command is configured.
// Registration fails, so the adapter reports a connect rejection instead
// of hanging.
type UnavailableHost struct{}

func (UnavailableHost) Register(ctx context.Context, reg Registration, cb Callback) (Controller, error) {
	return nil, errors.New("native host not configured")
}
