package handlers

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	stripesdk "github.com/stripe/stripe-go/v82"

	stripeclient "armora/api_payments/internal/stripe"
	"armora/api_payments/pkg/logging"
)

// TransferClient is the slice of the Stripe wrapper the handlers use,
// narrowed to an interface so tests can stub the money movement.
type TransferClient interface {
	CreateTransfer(ctx context.Context, params stripeclient.TransferParams) (*stripesdk.Transfer, error)
	CreatePaymentIntent(ctx context.Context, params stripeclient.PaymentIntentParams) (*stripesdk.PaymentIntent, error)
	VerifyAndParseWebhook(payload []byte, signature string) (*stripesdk.Event, error)
	PaymentIntentFromEvent(event *stripesdk.Event) (*stripesdk.PaymentIntent, error)
}

var (
	db        *sql.DB
	logger    logging.Logger
	stripeAPI TransferClient
	metrics   *PaymasterMetrics
)

// PaymasterMetrics holds all Prometheus metrics for Paymaster
type PaymasterMetrics struct {
	FeeCalculations  *prometheus.CounterVec
	PayoutOperations *prometheus.CounterVec
	Transfers        *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec
	DBQueries        *prometheus.CounterVec
	DBDuration       *prometheus.HistogramVec
	DBConnections    *prometheus.GaugeVec
}

// Init initializes the handlers with database, logger, Stripe client and
// metrics
func Init(database *sql.DB, log logging.Logger, stripeClient TransferClient, paymasterMetrics *PaymasterMetrics) {
	db = database
	logger = log
	stripeAPI = stripeClient
	metrics = paymasterMetrics
}
