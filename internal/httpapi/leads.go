package httpapi

import (
	"net/http"
	"strconv"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/leads"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListLeads(c *gin.Context) {
	limit, err := queryInt(c, "limit", leads.DefaultLimit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	page, err := h.Leads.List(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch leads", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"leads":   page.Leads,
		"total":   page.Total,
		"hasMore": page.HasMore,
	})
}

func (h Handlers) CreateLead(c *gin.Context) {
	var req leads.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	lead, err := h.Leads.Create(c.Request.Context(), req)
	if err != nil {
		if invalidArgument(err) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to create lead", err)
		return
	}

	h.Audit.Record(c.Request.Context(), actor(c), audit.Event{
		Type:      audit.EventTypeLeadCreated,
		ContactID: lead.ID,
		Message:   "lead created",
	}, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
