package main

import (
	"headset-hub/internal/auth"
	"headset-hub/internal/httpapi"
	"headset-hub/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// Identity echo for client debugging.
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			cid, _ := auth.ClientID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "client_id": cid, "role": role})
		})

		// HEADSET routes: selection and device state.
		hs := v1.Group("/headset")
		hs.Use(httpapi.RequireClientAndAnyRole(rbac.RoleSoftphone, rbac.RoleOperator, rbac.RoleSuperAdmin)...)
		{
			hs.GET("", h.GetHeadsetState)
			hs.POST("/select", h.SelectVendor)
			hs.POST("/select-by-label", h.SelectByLabel)
			hs.POST("/mute", h.SetMute)
		}

		// CALLS routes: upward call-control surface.
		calls := v1.Group("/calls")
		calls.Use(httpapi.RequireClientAndAnyRole(rbac.RoleSoftphone, rbac.RoleOperator, rbac.RoleSuperAdmin)...)
		{
			calls.POST("/incoming", h.IncomingCall)
			calls.POST("/outgoing", h.OutgoingCall)
			calls.POST("/:conversation_id/answer", h.AnswerCall)
			calls.POST("/:conversation_id/reject", h.RejectCall)
			calls.POST("/:conversation_id/hold", h.SetHold)
			calls.POST("/:conversation_id/end", h.EndCall)
			calls.POST("/end-all", h.EndAllCalls)
		}

		// EVENTS stream: one WebSocket per subscriber.
		events := v1.Group("/events")
		events.Use(rbac.RequireClient())
		{
			events.GET("", h.StreamEvents)
		}
	}
}
