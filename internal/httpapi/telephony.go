package httpapi

import (
	"net/http"
	"strings"

	"voice-campaigns/internal/audit"

	"github.com/gin-gonic/gin"
)

func (h Handlers) telephonyConfigured(c *gin.Context) bool {
	if h.Telephony == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "telephony not configured"})
		return false
	}
	return true
}

// GetRecording returns the latest recording for a carrier call.
func (h Handlers) GetRecording(c *gin.Context) {
	if !h.telephonyConfigured(c) {
		return
	}
	rec, err := h.Telephony.GetCallRecording(c.Request.Context(), c.Param("sid"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch recording", err)
		return
	}
	if rec == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recording": rec})
}

type smsRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (h Handlers) SendSMS(c *gin.Context) {
	if !h.telephonyConfigured(c) {
		return
	}
	var req smsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || strings.TrimSpace(req.Body) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and body are required"})
		return
	}

	msg, err := h.Telephony.SendSMS(c.Request.Context(), req.To, req.Body)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to send SMS", err)
		return
	}
	h.Audit.Record(c.Request.Context(), actor(c), audit.Event{
		Type:    audit.EventTypeSMSSent,
		Message: "sms sent",
	}, map[string]any{"to": req.To, "messageSid": msg.SID})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
