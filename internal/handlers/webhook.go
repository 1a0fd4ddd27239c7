package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"box-office/internal/logger"
	"box-office/internal/payable"
	"box-office/internal/utils"
)

// WebhookHandler receives Stripe event callbacks and applies them to the
// matching transactions.
type WebhookHandler struct {
	payments      *payable.Service
	webhookSecret string
	log           *logger.Logger
}

func NewWebhookHandler(payments *payable.Service, webhookSecret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments:      payments,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to read webhook body", err.Error()))
		return
	}

	event, err := h.parseEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn("WEBHOOK", "Rejected Stripe webhook: "+err.Error())
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		intent, err := intentFromEvent(event)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid event data", err.Error()))
			return
		}
		if _, err := h.payments.MarkTransactionCompleted(c.Request.Context(), intent.ID); err != nil {
			h.log.Error("WEBHOOK", fmt.Sprintf("Failed to apply %s for intent %s: %v", event.Type, intent.ID, err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process event", err.Error()))
			return
		}
		h.log.LogPayment("WEBHOOK", intent.ID, "Payment intent succeeded")

	case "payment_intent.payment_failed", "payment_intent.canceled":
		intent, err := intentFromEvent(event)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid event data", err.Error()))
			return
		}
		if _, err := h.payments.MarkTransactionFailed(intent.ID); err != nil {
			h.log.Error("WEBHOOK", fmt.Sprintf("Failed to apply %s for intent %s: %v", event.Type, intent.ID, err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process event", err.Error()))
			return
		}
		h.log.LogPayment("WEBHOOK", intent.ID, "Payment intent failed")

	default:
		h.log.Debug("WEBHOOK", fmt.Sprintf("Ignoring Stripe event type %s", event.Type))
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Webhook received", nil))
}

// parseEvent verifies the signature when a webhook secret is configured;
// without one (local development) the payload is trusted as-is.
func (h *WebhookHandler) parseEvent(body []byte, signature string) (stripe.Event, error) {
	if h.webhookSecret != "" {
		return webhook.ConstructEvent(body, signature, h.webhookSecret)
	}

	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return stripe.Event{}, fmt.Errorf("failed to parse event: %w", err)
	}
	return event, nil
}

func intentFromEvent(event stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent: %w", err)
	}
	return &intent, nil
}
