package telephony

import (
	"net/http"
	"strings"
	"time"

	"voice-campaigns/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TwilioWebhookHandler serves the carrier-facing Twilio callbacks: the TwiML
// fetched when a direct-dialed call is answered, and call status updates.
//
// No business logic here; status updates are handed to Sink.
type TwilioWebhookHandler struct {
	// AuthToken enables X-Twilio-Signature validation when set.
	AuthToken string
	// PublicBaseURL is the externally visible origin Twilio calls
	// (e.g. https://voice.example.com). It is part of the signed payload.
	PublicBaseURL string

	Answer AnswerInstructions
	Sink   StatusSink

	Now func() time.Time
}

func (h TwilioWebhookHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// verify checks the request signature. It must run after the form is parsed.
func (h TwilioWebhookHandler) verify(c *gin.Context) bool {
	if h.AuthToken == "" {
		return true
	}
	return ValidTwilioSignature(h.AuthToken, h.requestURL(c), c.Request.PostForm, c.GetHeader("X-Twilio-Signature"))
}

func (h TwilioWebhookHandler) requestURL(c *gin.Context) string {
	base := strings.TrimRight(h.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + c.Request.URL.RequestURI()
}

func (h TwilioWebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Sink == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status sink not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio status parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if !h.verify(c) {
		log.Warn("twilio signature mismatch", "call_sid", form.CallSid)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	update := form.ToStatusUpdate(h.now())
	if err := h.Sink.RecordCarrierStatus(c.Request.Context(), update); err != nil {
		log.Error("twilio status record failed", "call_sid", update.CallSID, "status", update.Status, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}

	log.Info("twilio status recorded", "call_sid", update.CallSID, "status", update.Status, "duration", update.DurationSeconds)
	c.Status(http.StatusNoContent)
}

func (h TwilioWebhookHandler) HandleVoiceAnswer(c *gin.Context) {
	log := logger.FromGin(c)

	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if !h.verify(c) {
		log.Warn("twilio signature mismatch", "call_sid", c.Request.PostFormValue("CallSid"))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	twiml, err := RenderTwiML(h.Answer)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}

	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
