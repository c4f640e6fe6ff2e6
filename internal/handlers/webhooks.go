package handlers

import (
	"fmt"
	"io"
	"net/http"

	stripesdk "github.com/stripe/stripe-go/v82"

	"armora/api_payments/pkg/api/paymaster"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/middleware"
)

// HandleStripeWebhook processes signature-verified Stripe events. Stripe
// retries on non-2xx, so duplicates are expected and deduplicated against
// the webhook_events ledger.
func HandleStripeWebhook(c middleware.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Failed to read request body"})
		return
	}

	event, err := stripeAPI.VerifyAndParseWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logger.WithError(err).Warn("Invalid Stripe webhook signature")
		recordWebhookEvent("signature_failed")
		c.JSON(http.StatusUnauthorized, paymaster.ErrorResponse{Error: "Invalid signature"})
		return
	}

	logger.WithFields(logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Info("Received Stripe webhook")

	// Check idempotency - skip if already processed
	if isWebhookAlreadyProcessed("stripe", event.ID) {
		logger.WithField("event_id", event.ID).Debug("Stripe webhook already processed, skipping")
		c.JSON(http.StatusOK, middleware.H{"received": true})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		err = handlePaymentIntentEvent(event)
	default:
		logger.WithField("event_type", event.Type).Debug("Ignoring unhandled Stripe event type")
	}

	if err != nil {
		logger.WithError(err).WithField("event_type", event.Type).Error("Failed to process Stripe webhook")
		recordWebhookEvent("failed")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to process webhook"})
		return
	}

	markWebhookProcessed("stripe", event.ID, string(event.Type))
	recordWebhookEvent("processed")
	c.JSON(http.StatusOK, middleware.H{"received": true})
}

func handlePaymentIntentEvent(event *stripesdk.Event) error {
	intent, err := stripeAPI.PaymentIntentFromEvent(event)
	if err != nil {
		return err
	}

	assignmentID := intent.Metadata["assignment_id"]
	if assignmentID == "" {
		logger.WithField("payment_intent_id", intent.ID).Debug("No assignment_id in payment intent metadata, skipping")
		return nil
	}

	status := "succeeded"
	if event.Type == "payment_intent.payment_failed" {
		status = "failed"
	}

	_, err = db.Exec(`
		UPDATE paymaster.protection_assignments
		SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_intent_id = $3
	`, status, assignmentID, intent.ID)
	if err != nil {
		return fmt.Errorf("failed to update assignment payment status: %w", err)
	}

	logger.WithFields(logging.Fields{
		"payment_intent_id": intent.ID,
		"assignment_id":     assignmentID,
		"payment_status":    status,
	}).Info("Updated assignment payment status from Stripe webhook")

	return nil
}

// isWebhookAlreadyProcessed checks if a webhook event was already processed
func isWebhookAlreadyProcessed(provider, eventID string) bool {
	if db == nil {
		return false
	}
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM paymaster.webhook_events WHERE provider = $1 AND event_id = $2)
	`, provider, eventID).Scan(&exists)
	return err == nil && exists
}

// markWebhookProcessed marks a webhook event as processed
func markWebhookProcessed(provider, eventID, eventType string) {
	if db == nil {
		return
	}
	_, err := db.Exec(`
		INSERT INTO paymaster.webhook_events (provider, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, eventType)
	if err != nil {
		logger.WithError(err).Warn("Failed to mark webhook as processed")
	}
}

func recordWebhookEvent(status string) {
	if metrics != nil {
		metrics.WebhookEvents.WithLabelValues(status).Inc()
	}
}
