package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"voice-campaigns/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SecretHeader carries the shared secret configured on the voice provider.
const SecretHeader = "x-vapi-secret"

// Observer records webhook outcomes (metrics).
type Observer interface {
	ObserveWebhook(eventType, outcome string, elapsed time.Duration)
}

type dispatcher interface {
	Handle(ctx context.Context, ev Event) error
}

// Handler is the gin endpoint the voice provider posts events to.
type Handler struct {
	Dispatcher dispatcher
	// Secret, when set, must match the SecretHeader value.
	Secret   string
	Observer Observer
}

func (h Handler) Handle(c *gin.Context) {
	start := time.Now()
	log := logger.FromGin(c)

	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretHeader)), []byte(h.Secret)) != 1 {
		log.Warn("vapi webhook rejected: bad secret")
		h.observe("unknown", "unauthorized", start)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var p Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		// Only a missing call is a client error; an unreadable body fails processing.
		log.Error("vapi webhook decode failed", "err", err)
		h.observe("unknown", "error", start)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	ev, err := Classify(p)
	if err != nil {
		log.Warn("vapi webhook rejected", "type", p.Normalize().Type, "err", err)
		h.observe("unknown", "invalid", start)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventType := metricEventType(ev)
	log.Info("vapi webhook received", "event_type", ev.Type(), "call_id", ev.CallData().ID)

	if err := h.Dispatcher.Handle(c.Request.Context(), ev); err != nil {
		if IsValidation(err) {
			h.observe(eventType, "invalid", start)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.observe(eventType, "error", start)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	h.observe(eventType, "ok", start)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h Handler) observe(eventType, outcome string, start time.Time) {
	if h.Observer == nil {
		return
	}
	h.Observer.ObserveWebhook(eventType, outcome, time.Since(start))
}

// metricEventType keeps label cardinality bounded for unrecognized types.
func metricEventType(ev Event) string {
	if _, ok := ev.(UnknownEvent); ok {
		return "unknown"
	}
	return ev.Type()
}
