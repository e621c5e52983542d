package plantronics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// The Spokes hub answers plain GET requests on a fixed localhost base
// address and wraps every response body in the same JSON envelope.

// Envelope is the hub response wrapper.
type Envelope struct {
	Result   json.RawMessage `json:"Result"`
	Err      *HubError       `json:"Err"`
	Type     int             `json:"Type"`
	TypeName string          `json:"Type_Name"`
	IsError  bool            `json:"isError"`
}

// HubError is the vendor-reported error payload.
type HubError struct {
	Description string `json:"Description"`
	Type        int    `json:"Type"`
}

func (e *HubError) Error() string {
	return fmt.Sprintf("plantronics: hub error %d: %s", e.Type, e.Description)
}

// AlreadyRegistered reports whether the hub rejected a session step because
// the plugin session already exists. Callers treat this as success.
func (e *HubError) AlreadyRegistered() bool {
	return strings.Contains(strings.ToLower(e.Description), "already registered")
}

// ErrNotFound marks a 404-class response. Steady-state polls retry such
// requests exactly once with a retry flag before forcing disconnect.
var ErrNotFound = errors.New("plantronics: not found")

// Client issues hub requests. There is no persistent connection; every
// command is a discrete round trip.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// Get performs a hub request and returns the Result payload. A vendor error
// payload is returned as *HubError; HTTP 404 maps to ErrNotFound.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plantronics: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plantronics: request %s: unexpected status %d", path, resp.StatusCode)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("plantronics: decode %s: %w", path, err)
	}
	if env.Err != nil && env.Err.Description != "" {
		return env.Result, env.Err
	}
	if env.IsError {
		return env.Result, &HubError{Description: "unspecified hub error", Type: env.Type}
	}
	return env.Result, nil
}
