package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/auth"
	"voice-campaigns/internal/calls"
	"voice-campaigns/internal/leads"
	"voice-campaigns/internal/rbac"
	"voice-campaigns/internal/reporting"
	"voice-campaigns/internal/telephony"
	"voice-campaigns/internal/voice"
	"voice-campaigns/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CallService interface {
	Initiate(ctx context.Context, req calls.InitiateRequest) (*calls.InitiateResult, error)
	InitiateDirect(ctx context.Context, req calls.DirectDialRequest) (*calls.Call, error)
	Status(ctx context.Context, callID string) (*voice.Call, error)
	List(ctx context.Context, f calls.ListFilter) ([]calls.Call, error)
}

type LeadService interface {
	Create(ctx context.Context, in leads.CreateRequest) (*leads.Lead, error)
	List(ctx context.Context, limit, offset int) (*leads.Page, error)
}

type AnalyticsService interface {
	CallAnalytics(ctx context.Context, req reporting.CallAnalyticsRequest) (reporting.CallAnalytics, error)
}

// Handlers groups the operator API handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Telephony may be nil when Twilio is not configured.
type Handlers struct {
	Auth      *auth.Manager
	Calls     CallService
	Leads     LeadService
	Analytics AnalyticsService
	Telephony telephony.Provider
	Audit     *audit.Service

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func actor(c *gin.Context) audit.Actor {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

// fail logs err with the request logger and aborts with a generic message.
func fail(c *gin.Context, status int, msg string, err error) {
	logger.FromGin(c).Error(msg, "err", err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// --- Auth ---

type tokenRequest struct {
	APIKey string `json:"api_key"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken exchanges the admin API key for a token pair. The caller may
// ask for a narrower role than admin.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Auth.CheckAPIKey(req.APIKey); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleAdmin
	}
	if !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	if req.UserID == "" {
		req.UserID = "admin"
	}

	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.Role)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token issuance failed", err)
		return
	}
	h.Audit.Record(c.Request.Context(),
		audit.Actor{UserID: req.UserID, Role: req.Role, IP: c.ClientIP()},
		audit.Event{Type: audit.EventTypeTokenIssued, Message: "token pair issued"}, nil)
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) RefreshToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// invalidArgument reports whether err should be shown to the caller as a 400.
func invalidArgument(err error) bool {
	return errors.Is(err, calls.ErrInvalidArgument) ||
		errors.Is(err, leads.ErrInvalidArgument) ||
		errors.Is(err, reporting.ErrInvalidRequest)
}
