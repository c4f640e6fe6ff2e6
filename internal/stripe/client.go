package stripe

import (
	"context"
	"fmt"

	"armora/api_payments/pkg/logging"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/transfer"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Client wraps the Stripe API operations the payments service needs: client
// charges via Payment Intents and contractor settlement via Connect
// transfers.
type Client struct {
	secretKey     string
	webhookSecret string
	logger        logging.Logger
}

// Config for creating a new Stripe client
type Config struct {
	SecretKey     string // STRIPE_SECRET_KEY
	WebhookSecret string // STRIPE_WEBHOOK_SECRET
	Logger        logging.Logger
}

// NewClient creates a new Stripe client
func NewClient(config Config) *Client {
	// Set the global API key for the stripe-go library
	stripe.Key = config.SecretKey

	return &Client{
		secretKey:     config.SecretKey,
		webhookSecret: config.WebhookSecret,
		logger:        config.Logger,
	}
}

// TransferParams describes a platform-to-contractor funds transfer
type TransferParams struct {
	AmountMinor  int64  // in minor currency units (pence for GBP)
	Currency     string // lowercase ISO code
	Destination  string // connected account id (acct_...)
	AssignmentID string // for reconciliation metadata
	CPOID        string
}

// CreateTransfer moves funds from the platform balance to a connected
// account. The returned transfer id is the reconciliation anchor: callers
// must persist it before treating the payout as settled.
func (c *Client) CreateTransfer(ctx context.Context, params TransferParams) (*stripe.Transfer, error) {
	transferParams := &stripe.TransferParams{
		Amount:      stripe.Int64(params.AmountMinor),
		Currency:    stripe.String(params.Currency),
		Destination: stripe.String(params.Destination),
		Metadata: map[string]string{
			"assignment_id": params.AssignmentID,
			"cpo_id":        params.CPOID,
		},
	}
	transferParams.Context = ctx

	tr, err := transfer.New(transferParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"transfer_id":   tr.ID,
		"assignment_id": params.AssignmentID,
		"cpo_id":        params.CPOID,
		"amount_minor":  params.AmountMinor,
	}).Info("Created Stripe transfer")

	return tr, nil
}

// PaymentIntentParams describes a client charge for one assignment
type PaymentIntentParams struct {
	AmountMinor  int64
	Currency     string
	AssignmentID string
	PrincipalID  string
}

// CreatePaymentIntent creates the Payment Intent the booking SPA confirms
// with Stripe.js.
func (c *Client) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*stripe.PaymentIntent, error) {
	intentParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"assignment_id": params.AssignmentID,
			"principal_id":  params.PrincipalID,
		},
	}
	intentParams.Context = ctx

	intent, err := paymentintent.New(intentParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"payment_intent_id": intent.ID,
		"assignment_id":     params.AssignmentID,
		"amount_minor":      params.AmountMinor,
	}).Info("Created Stripe payment intent")

	return intent, nil
}

// VerifyAndParseWebhook verifies the webhook signature and parses the event
func (c *Client) VerifyAndParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// PaymentIntentFromEvent extracts payment intent data from a webhook event
func (c *Client) PaymentIntentFromEvent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var intent stripe.PaymentIntent
		if err := intent.UnmarshalJSON(event.Data.Raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
		}
		return &intent, nil
	default:
		return nil, fmt.Errorf("event type %s does not contain payment intent data", event.Type)
	}
}
