package main

import (
	"database/sql"
	"net/http"
	"time"

	"voice-campaigns/internal/httpapi"
	"voice-campaigns/internal/rbac"
	"voice-campaigns/internal/telephony"
	"voice-campaigns/internal/webhook"
	"voice-campaigns/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// deps is everything the route tables need, built once in main.
type deps struct {
	db      *sql.DB
	webhook webhook.Handler
	// twilio is nil when Twilio credentials are not configured.
	twilio *telephony.TwilioWebhookHandler
	api    httpapi.Handlers
}

// Keep this file free of business logic. Handlers delegate to internal modules.

func registerPublicRoutes(r *gin.Engine, d deps) {
	r.GET("/healthz", func(c *gin.Context) {
		if d.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks. Authenticity is checked inside the handlers
	// (shared secret for Vapi, X-Twilio-Signature for Twilio).
	hooks := r.Group("/webhooks")
	{
		hooks.POST("/vapi", d.webhook.Handle)

		if d.twilio != nil {
			hooks.POST("/twilio/status", d.twilio.HandleStatusCallback)
			hooks.POST("/twilio/voice", d.twilio.HandleVoiceAnswer)
		} else {
			notConfigured := func(c *gin.Context) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Twilio is not configured"})
			}
			hooks.POST("/twilio/status", notConfigured)
			hooks.POST("/twilio/voice", notConfigured)
		}
	}
}

func registerAuthRoutes(r *gin.Engine, h httpapi.Handlers) {
	g := r.Group("/auth")
	{
		g.POST("/token", h.IssueToken)
		g.POST("/refresh", h.RefreshToken)
	}
}

func registerProtectedRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(authMW)

	writers := rbac.RequireAnyRole(rbac.Writers...)
	readers := rbac.RequireAnyRole(rbac.Readers...)

	callsGroup := v1.Group("/calls")
	{
		callsGroup.POST("", writers, h.InitiateCall)
		callsGroup.GET("", readers, h.ListCalls)
		callsGroup.GET("/:id", readers, h.GetCallStatus)
	}

	leadsGroup := v1.Group("/leads")
	{
		leadsGroup.GET("", readers, h.ListLeads)
		leadsGroup.POST("", writers, h.CreateLead)
	}

	v1.GET("/analytics/calls", readers, h.CallAnalytics)

	tel := v1.Group("/telephony")
	tel.Use(writers)
	{
		tel.POST("/calls", h.DirectDial)
		tel.GET("/calls/:sid/recording", h.GetRecording)
		tel.POST("/sms", h.SendSMS)
	}
}
