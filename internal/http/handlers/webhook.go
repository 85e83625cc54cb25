// Package handlers implements the webhook endpoints: the Meta subscription
// verification handshake and the message receiver. The receiver always
// answers 200 "ok" once the payload is read — failures are logged and
// traced server-side, never surfaced, because a non-2xx makes the provider
// redeliver the same events.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/delivio/go-commerce-bot/internal/services"
)

// Processor handles one decoded inbound message.
type Processor interface {
	Process(ctx context.Context, msg services.InboundMessage) error
}

// WebhookHandler terminates the webhook surface.
type WebhookHandler struct {
	verifyToken string
	processor   Processor
}

// NewWebhookHandler builds the handler. verifyToken is the shared secret
// echoed during the subscription handshake.
func NewWebhookHandler(verifyToken string, p Processor) *WebhookHandler {
	return &WebhookHandler{verifyToken: verifyToken, processor: p}
}

// Verify implements the GET handshake: hub.mode must be "subscribe" and
// hub.verify_token must match; the challenge is echoed back verbatim.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && challenge != "" {
		c.String(http.StatusOK, challenge)
		return
	}
	log.Warn().Str("mode", mode).Msg("webhook verification rejected")
	c.String(http.StatusForbidden, "forbidden")
}

// Receive implements the POST receiver. Each decoded message is processed
// in turn; one bad message does not stop the rest of the batch.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Warn().Err(err).Msg("undecodable webhook payload")
		c.String(http.StatusOK, "ok")
		return
	}

	for _, msg := range decodeMessages(&payload) {
		if err := h.processor.Process(c.Request.Context(), msg); err != nil {
			log.Error().Err(err).
				Str("routing_id", msg.RoutingID).
				Str("kind", msg.Kind).
				Msg("event processing failed")
		}
	}
	c.String(http.StatusOK, "ok")
}
