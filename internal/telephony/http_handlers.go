package telephony

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"dealership-platform/internal/metrics"
	"dealership-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds one event delivery. End-of-call reports carry the
// full transcript and artifacts, so the bound is generous.
const maxWebhookBody = 8 << 20

// SessionPinger reports whether the session store is reachable.
type SessionPinger interface {
	Ping(ctx context.Context) error
}

// WebhookHandler adapts the voice platform's HTTP webhook to the Router.
// Only an unintelligible envelope is rejected; everything else is acked so
// the platform does not redeliver.
type WebhookHandler struct {
	Router  *Router
	Secret  string
	Metrics *metrics.PipelineMetrics
	Now     func() time.Time
}

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	now := h.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	if h.Secret != "" {
		got := c.GetHeader("X-Vapi-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			log.Warn("webhook secret mismatch")
			h.Metrics.ObserveWebhook("unauthorized", "401", now().Sub(start).Seconds())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Error("webhook body over limit", "limit_bytes", tooLarge.Limit)
			h.Metrics.ObserveWebhook("too_large", "413", now().Sub(start).Seconds())
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		log.Warn("webhook body read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	msg, err := DecodeEnvelope(body)
	switch {
	case errors.Is(err, ErrInvalidJSON):
		log.Warn("webhook body is not json")
		h.Metrics.ObserveWebhook("invalid", "400", now().Sub(start).Seconds())
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	case errors.Is(err, ErrMissingMessage):
		log.Warn("webhook payload missing message object")
		h.Metrics.ObserveWebhook("invalid", "400", now().Sub(start).Seconds())
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: missing 'message' object"})
		return
	case msg == nil:
		c.Status(http.StatusOK)
		return
	}

	event := msg.Event()
	log.Info("webhook received", "type", msg.Type, "event", event.String())
	res := h.Router.Route(c.Request.Context(), *msg)
	h.Metrics.ObserveWebhook(event.String(), strconv.Itoa(res.Status), now().Sub(start).Seconds())
	c.JSON(res.Status, res.Body)
}

// Health reports webhook service status including session store reachability.
func Health(sessions SessionPinger, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		status := "connected"
		if sessions == nil {
			status = "disconnected"
		} else if err := sessions.Ping(c.Request.Context()); err != nil {
			status = "error - " + err.Error()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "Voice Agent Webhooks",
			"timestamp": now().UTC().Format(time.RFC3339),
			"dependencies": gin.H{
				"session_store": status,
			},
		})
	}
}
