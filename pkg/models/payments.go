package models

import (
	"database/sql"
	"time"
)

// Protection levels offered by the booking flow. The level does not change
// the fee split; it is carried for auditing and display.
const (
	ProtectionLevelEssential      = "essential"
	ProtectionLevelExecutive      = "executive"
	ProtectionLevelShadowProtocol = "shadow_protocol"
	ProtectionLevelClientVehicle  = "client_vehicle"
)

// Assignment lifecycle values read or written by this service.
const (
	AssignmentStatusCompleted = "completed"

	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"

	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
)

// ValidProtectionLevel reports whether level is one of the offered tiers.
func ValidProtectionLevel(level string) bool {
	switch level {
	case ProtectionLevelEssential, ProtectionLevelExecutive,
		ProtectionLevelShadowProtocol, ProtectionLevelClientVehicle:
		return true
	}
	return false
}

// Profile represents a platform identity. Owned by the identity service;
// paymaster reads the role and Stripe Connect destination.
type Profile struct {
	ID                     string         `json:"id" db:"id"`
	Email                  string         `json:"email" db:"email"`
	FullName               sql.NullString `json:"full_name" db:"full_name"`
	Role                   string         `json:"role" db:"role"`
	StripeConnectAccountID sql.NullString `json:"stripe_connect_account_id" db:"stripe_connect_account_id"`
	PayoutsEnabled         bool           `json:"payouts_enabled" db:"payouts_enabled"`
	CreatedAt              time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at" db:"updated_at"`
}

// ProtectionAssignment is a booked unit of protection service. The booking
// flow owns creation and operational transitions; paymaster owns
// payout_status and the payment linkage fields.
type ProtectionAssignment struct {
	ID              string          `json:"id" db:"id"`
	PrincipalID     string          `json:"principal_id" db:"principal_id"`
	CPOID           sql.NullString  `json:"cpo_id" db:"cpo_id"`
	ProtectionLevel string          `json:"protection_level" db:"protection_level"`
	BaseRate        float64         `json:"base_rate" db:"base_rate"`
	Hours           float64         `json:"hours" db:"hours"`
	CPOAmount       sql.NullFloat64 `json:"cpo_amount" db:"cpo_amount"`
	Currency        string          `json:"currency" db:"currency"`
	Status          string          `json:"status" db:"status"`
	PaymentStatus   sql.NullString  `json:"payment_status" db:"payment_status"`
	PaymentIntentID sql.NullString  `json:"payment_intent_id" db:"payment_intent_id"`
	PayoutStatus    sql.NullString  `json:"payout_status" db:"payout_status"`
	PayoutID        sql.NullString  `json:"payout_id" db:"payout_id"`
	CompletedAt     sql.NullTime    `json:"completed_at" db:"completed_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CPOPayout records one confirmed transfer of funds from the platform to a
// contractor. A row exists if and only if a Stripe transfer was created; it
// is the source of truth earnings reports sum over.
type CPOPayout struct {
	ID               string    `json:"id" db:"id"`
	CPOID            string    `json:"cpo_id" db:"cpo_id"`
	AssignmentID     string    `json:"assignment_id" db:"assignment_id"`
	Amount           float64   `json:"amount" db:"amount"`
	Currency         string    `json:"currency" db:"currency"`
	StripeTransferID string    `json:"stripe_transfer_id" db:"stripe_transfer_id"`
	Status           string    `json:"status" db:"status"`
	ProcessedAt      time.Time `json:"processed_at" db:"processed_at"`
	ProcessedBy      string    `json:"processed_by" db:"processed_by"`
}

// FeeCalculation is an append-only audit row for every fee quote served.
type FeeCalculation struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	ProtectionLevel string    `json:"protection_level" db:"protection_level"`
	BaseRate        float64   `json:"base_rate" db:"base_rate"`
	Hours           float64   `json:"hours" db:"hours"`
	Subtotal        float64   `json:"subtotal" db:"subtotal"`
	ClientPays      float64   `json:"client_pays" db:"client_pays"`
	PlatformFee     float64   `json:"platform_fee" db:"platform_fee"`
	CPOReceives     float64   `json:"cpo_receives" db:"cpo_receives"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Reconciliation row types.
const (
	ReconciliationOrphanedTransfer = "orphaned_transfer"
	ReconciliationAssignmentFlag   = "assignment_flag"

	ReconciliationStatusOpen     = "open"
	ReconciliationStatusResolved = "resolved"
)

// PayoutReconciliation queues a money movement whose local bookkeeping did
// not complete, so operators do not have to rely on reading error bodies.
type PayoutReconciliation struct {
	ID               string         `json:"id" db:"id"`
	Type             string         `json:"reconciliation_type" db:"reconciliation_type"`
	AssignmentID     string         `json:"assignment_id" db:"assignment_id"`
	CPOID            string         `json:"cpo_id" db:"cpo_id"`
	StripeTransferID string         `json:"stripe_transfer_id" db:"stripe_transfer_id"`
	Amount           float64        `json:"amount" db:"amount"`
	Currency         string         `json:"currency" db:"currency"`
	Detail           sql.NullString `json:"detail" db:"detail"`
	Status           string         `json:"status" db:"status"`
	ResolvedBy       sql.NullString `json:"resolved_by" db:"resolved_by"`
	ResolutionNote   sql.NullString `json:"resolution_note" db:"resolution_note"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	ResolvedAt       sql.NullTime   `json:"resolved_at" db:"resolved_at"`
}
