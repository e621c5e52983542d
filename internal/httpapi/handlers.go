package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"headset-hub/internal/auth"
	"headset-hub/internal/headset"
	"headset-hub/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth  *auth.Manager
	Board *headset.Switchboard
	Bus   *headset.Bus

	// Redis optionally caps concurrent event streams per client.
	Redis *redis.Client
	Log   *slog.Logger
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ClientID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, client_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.ClientID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Headset selection ---

type adapterState struct {
	Vendor   string              `json:"vendor"`
	Selected bool                `json:"selected"`
	Status   headset.Status      `json:"status"`
	Device   *headset.DeviceInfo `json:"device,omitempty"`
}

// GetHeadsetState reports every registered adapter and which one is selected.
func (h Handlers) GetHeadsetState(c *gin.Context) {
	selected := h.Board.Selected()

	out := make([]adapterState, 0, len(h.Board.Adapters()))
	for _, a := range h.Board.Adapters() {
		st := adapterState{
			Vendor:   a.Name(),
			Selected: a == selected,
			Status:   a.ConnectionState(),
		}
		if dev, ok := a.ActiveDevice(); ok {
			st.Device = &dev
		}
		out = append(out, st)
	}

	selectedName := ""
	if selected != nil {
		selectedName = selected.Name()
	}
	c.JSON(http.StatusOK, gin.H{"selected": selectedName, "adapters": out})
}

type selectVendorRequest struct {
	Vendor string `json:"vendor"`
}

// SelectVendor switches the active adapter by vendor name. An empty
// vendor clears the selection.
func (h Handlers) SelectVendor(c *gin.Context) {
	var req selectVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Vendor == "" {
		h.Board.SelectAdapter(c.Request.Context(), nil)
		c.JSON(http.StatusOK, gin.H{"selected": ""})
		return
	}
	if err := h.Board.SelectVendor(c.Request.Context(), req.Vendor); err != nil {
		if errors.Is(err, headset.ErrUnknownVendor) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown vendor"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "selection failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": req.Vendor})
}

type selectByLabelRequest struct {
	DeviceLabel string `json:"device_label"`
}

// SelectByLabel matches a microphone label against the registry. No match
// clears the selection and reports an empty vendor.
func (h Handlers) SelectByLabel(c *gin.Context) {
	var req selectByLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	matched := h.Board.SelectForLabel(c.Request.Context(), req.DeviceLabel)
	name := ""
	if matched != nil {
		name = matched.Name()
	}
	c.JSON(http.StatusOK, gin.H{"selected": name})
}

type setMuteRequest struct {
	Muted bool `json:"muted"`
}

func (h Handlers) SetMute(c *gin.Context) {
	var req setMuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Board.SetMute(c.Request.Context(), req.Muted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": req.Muted})
}

// --- Call control ---

type callRequest struct {
	ConversationID string `json:"conversation_id"`
	ContactName    string `json:"contact_name,omitempty"`
}

func (h Handlers) IncomingCall(c *gin.Context) {
	h.announceCall(c, h.Board.IncomingCall)
}

func (h Handlers) OutgoingCall(c *gin.Context) {
	h.announceCall(c, h.Board.OutgoingCall)
}

func (h Handlers) announceCall(c *gin.Context, fn func(ctx context.Context, call headset.CallInfo) error) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ConversationID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation_id required"})
		return
	}
	call := headset.CallInfo{ConversationID: req.ConversationID, ContactName: req.ContactName}
	if err := fn(c.Request.Context(), call); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": req.ConversationID})
}

func (h Handlers) AnswerCall(c *gin.Context) {
	conv := c.Param("conversation_id")
	if err := h.Board.AnswerCall(c.Request.Context(), conv); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv})
}

func (h Handlers) RejectCall(c *gin.Context) {
	conv := c.Param("conversation_id")
	if err := h.Board.RejectCall(c.Request.Context(), conv); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv})
}

type setHoldRequest struct {
	Held bool `json:"held"`
}

func (h Handlers) SetHold(c *gin.Context) {
	conv := c.Param("conversation_id")
	var req setHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Board.SetHold(c.Request.Context(), conv, req.Held); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv, "held": req.Held})
}

type endCallRequest struct {
	HasOtherActiveCalls bool `json:"has_other_active_calls"`
}

func (h Handlers) EndCall(c *gin.Context) {
	conv := c.Param("conversation_id")
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Board.EndCall(c.Request.Context(), conv, req.HasOtherActiveCalls); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv})
}

func (h Handlers) EndAllCalls(c *gin.Context) {
	if err := h.Board.EndAllCalls(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor command failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Convenience middleware bundles.

func RequireClientAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireClient(), rbac.RequireAnyRole(roles...)}
}
