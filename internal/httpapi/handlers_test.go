package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"headset-hub/internal/headset"

	"github.com/gin-gonic/gin"
)

// stubAdapter connects instantly and records forwarded commands.
type stubAdapter struct {
	name string

	mu       sync.Mutex
	state    headset.State
	commands []string
}

func newStubAdapter(name string) *stubAdapter {
	return &stubAdapter{name: name, state: headset.StateDisconnected}
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Matches(label string) bool {
	return strings.Contains(strings.ToLower(label), a.name)
}

func (a *stubAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = headset.StateConnected
	return nil
}

func (a *stubAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = headset.StateDisconnected
	return nil
}

func (a *stubAdapter) ConnectionState() headset.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return headset.Status{State: a.state}
}

func (a *stubAdapter) ActiveDevice() (headset.DeviceInfo, bool) {
	return headset.DeviceInfo{ID: a.name + "-dev", Name: a.name}, true
}

func (a *stubAdapter) record(cmd string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)
	return nil
}

func (a *stubAdapter) IncomingCall(ctx context.Context, call headset.CallInfo) error {
	return a.record("incoming:" + call.ConversationID)
}
func (a *stubAdapter) OutgoingCall(ctx context.Context, call headset.CallInfo) error {
	return a.record("outgoing:" + call.ConversationID)
}
func (a *stubAdapter) AnswerCall(ctx context.Context, id string) error {
	return a.record("answer:" + id)
}
func (a *stubAdapter) RejectCall(ctx context.Context, id string) error {
	return a.record("reject:" + id)
}
func (a *stubAdapter) SetMute(ctx context.Context, muted bool) error { return a.record("mute") }
func (a *stubAdapter) SetHold(ctx context.Context, id string, h bool) error {
	return a.record("hold:" + id)
}
func (a *stubAdapter) EndCall(ctx context.Context, id string, o bool) error {
	return a.record("end:" + id)
}
func (a *stubAdapter) EndAllCalls(ctx context.Context) error { return a.record("endall") }

func (a *stubAdapter) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.commands))
	copy(out, a.commands)
	return out
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubAdapter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := headset.NewBus(8, slog.Default())
	t.Cleanup(bus.Close)
	adapter := newStubAdapter("alpha")
	board := headset.NewSwitchboard(bus, headset.Options{ConnectTimeout: time.Second}, adapter)

	h := Handlers{Board: board, Bus: bus, Log: slog.Default()}

	r := gin.New()
	r.GET("/v1/headset", h.GetHeadsetState)
	r.POST("/v1/headset/select", h.SelectVendor)
	r.POST("/v1/headset/select-by-label", h.SelectByLabel)
	r.POST("/v1/headset/mute", h.SetMute)
	r.POST("/v1/calls/incoming", h.IncomingCall)
	r.POST("/v1/calls/:conversation_id/answer", h.AnswerCall)
	r.POST("/v1/calls/:conversation_id/end", h.EndCall)
	return r, adapter
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func waitConnected(t *testing.T, a *stubAdapter) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for a.ConnectionState().State != headset.StateConnected {
		if time.Now().After(deadline) {
			t.Fatalf("adapter never connected")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSelectVendor_UnknownIs404(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/v1/headset/select", `{"vendor":"nonesuch"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSelectVendor_KnownVendorSelected(t *testing.T) {
	r, adapter := newTestRouter(t)

	w := do(r, http.MethodPost, "/v1/headset/select", `{"vendor":"alpha"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	waitConnected(t, adapter)

	state := do(r, http.MethodGet, "/v1/headset", "")
	if state.Code != http.StatusOK || !strings.Contains(state.Body.String(), `"selected":"alpha"`) {
		t.Fatalf("unexpected state response %d: %s", state.Code, state.Body.String())
	}
}

func TestSelectByLabel_NoMatchClears(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/v1/headset/select-by-label", `{"device_label":"Unknown Mic"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"selected":""`) {
		t.Fatalf("expected cleared selection, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCallCommands_ForwardToSelectedAdapter(t *testing.T) {
	r, adapter := newTestRouter(t)

	do(r, http.MethodPost, "/v1/headset/select", `{"vendor":"alpha"}`)
	waitConnected(t, adapter)

	if w := do(r, http.MethodPost, "/v1/calls/incoming", `{"conversation_id":"c1"}`); w.Code != http.StatusOK {
		t.Fatalf("incoming failed: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/v1/calls/c1/answer", ""); w.Code != http.StatusOK {
		t.Fatalf("answer failed: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/v1/calls/c1/end", `{"has_other_active_calls":false}`); w.Code != http.StatusOK {
		t.Fatalf("end failed: %d %s", w.Code, w.Body.String())
	}

	got := adapter.recorded()
	want := []string{"incoming:c1", "answer:c1", "end:c1"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCallCommands_NoSelectionStillOK(t *testing.T) {
	r, adapter := newTestRouter(t)

	// Nothing selected: commands resolve as silent no-ops.
	if w := do(r, http.MethodPost, "/v1/calls/incoming", `{"conversation_id":"c1"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200 no-op, got %d", w.Code)
	}
	if got := adapter.recorded(); len(got) != 0 {
		t.Fatalf("expected no adapter calls, got %v", got)
	}
}

func TestIncomingCall_RequiresConversationID(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(r, http.MethodPost, "/v1/calls/incoming", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
