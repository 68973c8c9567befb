package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/calls"

	"github.com/gin-gonic/gin"
)

// InitiateCall places an AI voice call to a lead.
func (h Handlers) InitiateCall(c *gin.Context) {
	var req calls.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Calls.Initiate(c.Request.Context(), req)
	switch {
	case err == nil:
	case invalidArgument(err):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, calls.ErrConcurrencyLimit):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Campaign concurrency limit reached"})
		return
	default:
		fail(c, http.StatusInternalServerError, "Failed to initiate call", err)
		return
	}

	h.Audit.Record(c.Request.Context(), actor(c), audit.Event{
		Type:       audit.EventTypeCallInitiated,
		CallID:     res.CallID,
		ContactID:  res.ContactID,
		CampaignID: req.CampaignID,
		Message:    "voice call initiated",
	}, nil)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"callId":    res.CallID,
		"contactId": res.ContactID,
		"status":    res.Status,
	})
}

// GetCallStatus returns the provider's view of one call, by path or ?callId=.
func (h Handlers) GetCallStatus(c *gin.Context) {
	callID := c.Param("id")
	if callID == "" {
		callID = c.Query("callId")
	}
	call, err := h.Calls.Status(c.Request.Context(), callID)
	if err != nil {
		if invalidArgument(err) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to get call status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

// ListCalls returns the local call log. With ?callId= it behaves like GetCallStatus.
func (h Handlers) ListCalls(c *gin.Context) {
	if c.Query("callId") != "" {
		h.GetCallStatus(c)
		return
	}

	r, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := calls.ListFilter{From: r.From, To: r.To, CampaignID: c.Query("campaignId"), Limit: 100}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		f.Limit = n
	}

	rows, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		if invalidArgument(err) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to list calls", err)
		return
	}
	if rows == nil {
		rows = []calls.Call{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "calls": rows})
}

// DirectDial places a carrier call without the AI assistant.
func (h Handlers) DirectDial(c *gin.Context) {
	var req calls.DirectDialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rec, err := h.Calls.InitiateDirect(c.Request.Context(), req)
	switch {
	case err == nil:
	case invalidArgument(err):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, calls.ErrDialerUnavailable):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "telephony not configured"})
		return
	case errors.Is(err, calls.ErrConcurrencyLimit):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Campaign concurrency limit reached"})
		return
	default:
		fail(c, http.StatusInternalServerError, "Failed to place call", err)
		return
	}

	h.Audit.Record(c.Request.Context(), actor(c), audit.Event{
		Type:       audit.EventTypeDirectDial,
		CallID:     rec.ProviderCallID,
		ContactID:  rec.ContactID,
		CampaignID: rec.CampaignID,
		Message:    "direct call placed",
	}, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "call": rec})
}
