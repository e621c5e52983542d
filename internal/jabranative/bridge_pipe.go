package jabranative

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Command line types written to the host.
const (
	pipeTypeRegister     = "register"
	pipeTypeHeadsetEvent = "headsetEvent"
	pipeTypeDeviceList   = "deviceList"
)

type pipeCommand struct {
	Type string `json:"type"`

	Registration *Registration `json:"registration,omitempty"`

	Event string `json:"event,omitempty"`
	Value bool   `json:"value,omitempty"`
}

// PipeBridge speaks newline-delimited JSON with the host shell: commands
// out on the writer, callback payloads in on the reader. This is the
// production transport for the native host process.
type PipeBridge struct {
	r   io.Reader
	w   io.Writer
	log *slog.Logger

	writeMu    sync.Mutex
	registered bool
}

func NewPipeBridge(r io.Reader, w io.Writer, log *slog.Logger) *PipeBridge {
	if log == nil {
		log = slog.Default()
	}
	return &PipeBridge{r: r, w: w, log: log.With("component", "jabra_host")}
}

// Register writes the registration line and starts pumping host payloads
// into the callback. A second registration is an error; the host accepts
// only one.
func (b *PipeBridge) Register(ctx context.Context, reg Registration, cb Callback) (Controller, error) {
	b.writeMu.Lock()
	if b.registered {
		b.writeMu.Unlock()
		return nil, fmt.Errorf("host already registered")
	}
	b.registered = true
	b.writeMu.Unlock()

	if err := b.write(pipeCommand{Type: pipeTypeRegister, Registration: &reg}); err != nil {
		return nil, err
	}
	go b.readLoop(cb)
	return &pipeController{bridge: b}, nil
}

func (b *PipeBridge) readLoop(cb Callback) {
	scanner := bufio.NewScanner(b.r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var payload Payload
		if err := json.Unmarshal(line, &payload); err != nil {
			b.log.Warn("undecodable host line dropped", "err", err)
			continue
		}
		cb(payload)
	}
	if err := scanner.Err(); err != nil {
		b.log.Warn("host stream closed", "err", err)
	}
}

func (b *PipeBridge) write(cmd pipeCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err = b.w.Write(append(data, '\n'))
	return err
}

type pipeController struct {
	bridge *PipeBridge
}

func (c *pipeController) SendHeadsetEvent(ctx context.Context, event string, value bool) error {
	return c.bridge.write(pipeCommand{Type: pipeTypeHeadsetEvent, Event: event, Value: value})
}

func (c *pipeController) RequestDeviceList(ctx context.Context) error {
	return c.bridge.write(pipeCommand{Type: pipeTypeDeviceList})
}
