package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/gateway"
	"github.com/revaspay/settlement/internal/services/order"
)

// PaymentProcessor applies verified payment events
type PaymentProcessor interface {
	HandlePaymentCaptured(ctx context.Context, evt *gateway.Event) (order.Outcome, error)
}

// WebhookHandler receives payment gateway webhooks.
//
// Once the signature is verified the gateway always gets a 200: processing
// failures are logged for operators and replays are absorbed by the
// idempotent order transition.
type WebhookHandler struct {
	verifier *gateway.Verifier
	payments PaymentProcessor
	events   repository.WebhookEventRepository
	log      *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(verifier *gateway.Verifier, payments PaymentProcessor, events repository.WebhookEventRepository, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		payments: payments,
		events:   events,
		log:      log.Named("webhook"),
	}
}

// PaymentWebhook handles POST /api/v1/webhooks/payment
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.log.Warn("unreadable webhook body", zap.Error(err))
		badRequest(c, "unreadable body")
		return
	}

	if err := h.verifier.Verify(raw, gateway.SignatureFrom(c.Request.Header)); err != nil {
		if errors.Is(err, gateway.ErrSecretNotConfigured) {
			h.log.Error("webhook secret not configured, rejecting delivery")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
			return
		}
		h.log.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		badRequest(c, "invalid signature")
		return
	}

	evt, err := gateway.DecodeEvent(raw)
	if err != nil {
		h.log.Warn("verified webhook body could not be decoded", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "malformed"})
		return
	}

	if evt.Event != gateway.EventPaymentCaptured {
		h.log.Info("webhook event ignored", zap.String("event", evt.Event))
		h.record(c, evt, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	outcome, err := h.payments.HandlePaymentCaptured(c.Request.Context(), evt)
	if err != nil {
		h.log.Error("payment captured processing failed",
			zap.String("payment_id", evt.Payment().ID),
			zap.String("gateway_order_id", evt.Payment().OrderID),
			zap.Error(err),
		)
		h.record(c, evt, "error")
		c.JSON(http.StatusOK, gin.H{"status": "error_logged"})
		return
	}

	h.record(c, evt, string(outcome))
	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}

// record keeps an audit row of the delivery. The first delivery of an event
// id wins; replays are not recorded again.
func (h *WebhookHandler) record(c *gin.Context, evt *gateway.Event, outcome string) {
	payment := evt.Payment()
	eventID := c.GetHeader(gateway.EventIDHeader)
	if eventID == "" {
		if payment.ID == "" {
			return
		}
		eventID = evt.Event + ":" + payment.ID
	}

	_, err := h.events.Record(c.Request.Context(), &models.WebhookEvent{
		EventID:          eventID,
		EventType:        evt.Event,
		GatewayPaymentID: payment.ID,
		Outcome:          outcome,
		ReceivedAt:       time.Now().UTC(),
	})
	if err != nil {
		h.log.Warn("failed to record webhook event", zap.String("event_id", eventID), zap.Error(err))
	}
}
