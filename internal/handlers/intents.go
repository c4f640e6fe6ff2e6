package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	stripeclient "armora/api_payments/internal/stripe"
	"armora/api_payments/pkg/api/paymaster"
	"armora/api_payments/pkg/auth"
	"armora/api_payments/pkg/ctxkeys"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/middleware"
)

// CreatePaymentIntent starts the client charge for an assignment. The
// charge amount is always recomputed server-side from the assignment's rate
// and duration; the client never supplies an amount.
func CreatePaymentIntent(c middleware.Context) {
	var req paymaster.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.AssignmentID == "" {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "assignmentId is required"})
		return
	}

	callerID := c.GetString(string(ctxkeys.KeyUserID))
	callerRole := c.GetString(string(ctxkeys.KeyRole))

	var principalID, currency string
	var baseRate, hours float64
	var paymentStatus sql.NullString
	err := db.QueryRow(`
		SELECT principal_id, base_rate, hours, currency, payment_status
		FROM paymaster.protection_assignments
		WHERE id = $1
	`, req.AssignmentID).Scan(&principalID, &baseRate, &hours, &currency, &paymentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, paymaster.ErrorResponse{Error: "Assignment not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load assignment for payment intent")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: fmt.Sprintf("Failed to load assignment: %v", err)})
		return
	}

	if !auth.CanActFor(callerID, callerRole, principalID) {
		c.JSON(http.StatusForbidden, paymaster.ErrorResponse{Error: "Cannot pay for another principal's assignment"})
		return
	}
	if paymentStatus.Valid && paymentStatus.String == "succeeded" {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Assignment is already paid"})
		return
	}

	breakdown := SplitFees(decimal.NewFromFloat(baseRate), decimal.NewFromFloat(hours))

	intent, err := stripeAPI.CreatePaymentIntent(c.Request.Context(), stripeclient.PaymentIntentParams{
		AmountMinor:  ToMinorUnits(breakdown.ClientPays),
		Currency:     strings.ToLower(currency),
		AssignmentID: req.AssignmentID,
		PrincipalID:  principalID,
	})
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"assignment_id": req.AssignmentID,
		}).Error("Failed to create payment intent")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: fmt.Sprintf("Failed to create payment intent: %v", err)})
		return
	}

	if _, err := db.Exec(`
		UPDATE paymaster.protection_assignments
		SET payment_intent_id = $1, payment_status = 'pending', updated_at = NOW()
		WHERE id = $2
	`, intent.ID, req.AssignmentID); err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"assignment_id":     req.AssignmentID,
			"payment_intent_id": intent.ID,
		}).Error("Failed to link payment intent to assignment")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: fmt.Sprintf("Failed to link payment intent: %v", err)})
		return
	}

	c.JSON(http.StatusOK, paymaster.CreatePaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          breakdown.ClientPays.InexactFloat64(),
		Currency:        currency,
	})
}
