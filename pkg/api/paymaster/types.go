// Package paymaster defines the request and response types of the payments
// service API.
package paymaster

import (
	"armora/api_payments/pkg/models"
)

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Error string `json:"error"`
	// Populated on orphaned-transfer failures so an operator can reconcile
	// the money movement that has no local record.
	TransferID string  `json:"transferId,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
}

// CalculateFeesRequest asks for the fee split of a quoted booking
type CalculateFeesRequest struct {
	BaseRate        float64 `json:"baseRate"`
	Hours           float64 `json:"hours"`
	ProtectionLevel string  `json:"protectionLevel"`
}

// FeeBreakdownRates echoes the fixed marketplace percentages
type FeeBreakdownRates struct {
	ClientMarkup          float64 `json:"clientMarkup"`
	PlatformFeePercentage float64 `json:"platformFeePercentage"`
	CPOPercentage         float64 `json:"cpoPercentage"`
}

// CalculateFeesResponse is the full financial breakdown of a booking quote
type CalculateFeesResponse struct {
	BaseRate    float64           `json:"baseRate"`
	Hours       float64           `json:"hours"`
	Subtotal    float64           `json:"subtotal"`
	ClientPays  float64           `json:"clientPays"`
	PlatformFee float64           `json:"platformFee"`
	CPOReceives float64           `json:"cpoReceives"`
	Breakdown   FeeBreakdownRates `json:"breakdown"`
}

// EarningsRequest asks for a contractor's earnings over a period
type EarningsRequest struct {
	CPOID     string `json:"cpoId,omitempty"`
	Period    string `json:"period"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// DateRange is the resolved reporting window
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// EarningsResponse reconciles completed payouts with pending earnings
type EarningsResponse struct {
	CPOID           string             `json:"cpoId"`
	Period          string             `json:"period"`
	TotalEarnings   float64            `json:"totalEarnings"`
	TotalPayouts    int                `json:"totalPayouts"`
	PendingEarnings float64            `json:"pendingEarnings"`
	PendingPayouts  int                `json:"pendingPayouts"`
	Currency        string             `json:"currency"`
	Payouts         []models.CPOPayout `json:"payouts"`
	DateRange       DateRange          `json:"dateRange"`
}

// ProcessPayoutRequest moves a completed assignment's contractor share
type ProcessPayoutRequest struct {
	AssignmentID string  `json:"assignmentId"`
	CPOID        string  `json:"cpoId"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency,omitempty"`
}

// ProcessPayoutResponse reports a settled payout
type ProcessPayoutResponse struct {
	Success      bool    `json:"success"`
	PayoutID     string  `json:"payoutId,omitempty"`
	TransferID   string  `json:"transferId,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	CPOID        string  `json:"cpoId,omitempty"`
	AssignmentID string  `json:"assignmentId,omitempty"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
}

// ListPayoutsResponse is a page of payout history
type ListPayoutsResponse struct {
	Payouts []models.CPOPayout `json:"payouts"`
	Count   int                `json:"count"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// CreatePaymentIntentRequest starts the client charge for an assignment
type CreatePaymentIntentRequest struct {
	AssignmentID string `json:"assignmentId"`
}

// CreatePaymentIntentResponse carries the client secret for Stripe.js
type CreatePaymentIntentResponse struct {
	PaymentIntentID string  `json:"paymentIntentId"`
	ClientSecret    string  `json:"clientSecret"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

// ListReconciliationsResponse is the open operator queue
type ListReconciliationsResponse struct {
	Reconciliations []models.PayoutReconciliation `json:"reconciliations"`
	Count           int                           `json:"count"`
}

// ResolveReconciliationRequest closes a reconciliation row
type ResolveReconciliationRequest struct {
	Note string `json:"note"`
}

// ResolveReconciliationResponse confirms the closure
type ResolveReconciliationResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status"`
}
