package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"voice-campaigns/internal/reporting"

	"github.com/gin-gonic/gin"
)

// CallAnalytics serves GET /v1/analytics/calls?from=&to=&campaignId=.
func (h Handlers) CallAnalytics(c *gin.Context) {
	r, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Analytics.CallAnalytics(c.Request.Context(), reporting.CallAnalyticsRequest{
		Range:      r,
		CampaignID: c.Query("campaignId"),
	})
	if err != nil {
		if invalidArgument(err) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid date range"})
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to compute analytics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": out})
}

// parseRange reads optional from/to query values as RFC 3339 timestamps or
// YYYY-MM-DD dates (UTC midnight).
func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	var r reporting.TimeRange
	var err error
	if r.From, err = parseBound(c.Query("from")); err != nil {
		return r, fmt.Errorf("invalid from: %w", err)
	}
	if r.To, err = parseBound(c.Query("to")); err != nil {
		return r, fmt.Errorf("invalid to: %w", err)
	}
	return r, nil
}

func parseBound(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, v)
}
