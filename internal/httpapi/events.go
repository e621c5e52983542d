package httpapi

import (
	"net/http"
	"time"

	"headset-hub/internal/auth"
	"headset-hub/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon serves localhost softphones; token auth already ran.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	eventWriteTimeout = 5 * time.Second
	pingInterval      = 30 * time.Second

	// streamsPerClient bounds concurrent event streams per softphone
	// installation when Redis is available.
	streamsPerClient = 3
	streamCapTTL     = 2 * time.Minute
)

// StreamEvents upgrades to a WebSocket and fans the normalized event bus
// out to the client as JSON frames, one event per frame.
func (h Handlers) StreamEvents(c *gin.Context) {
	clientID, _ := auth.ClientID(c.Request.Context())

	if h.Redis != nil && clientID != "" {
		key := "headset:streams:" + clientID
		ok, err := utils.AcquireConcurrencyCap(c.Request.Context(), h.Redis, key, streamsPerClient, streamCapTTL)
		if err != nil {
			h.Log.Warn("stream cap check failed", "err", err)
		} else if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many event streams"})
			return
		} else {
			defer func() {
				if err := utils.ReleaseConcurrencyCap(c.Request.Context(), h.Redis, key); err != nil {
					h.Log.Warn("stream cap release failed", "err", err)
				}
			}()
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	events, cancel := h.Bus.Subscribe()
	defer cancel()

	// Reads are only consumed to detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
