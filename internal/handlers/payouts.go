package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	stripeclient "armora/api_payments/internal/stripe"
	"armora/api_payments/pkg/api/paymaster"
	"armora/api_payments/pkg/auth"
	"armora/api_payments/pkg/ctxkeys"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/middleware"
	"armora/api_payments/pkg/models"
)

// ProcessPayout settles a completed, paid assignment: it transfers the
// contractor's share to their connected account, records the payout and
// marks the assignment paid out. Admin only (enforced by route middleware).
//
// A conditional claim on payout_status guarantees at most one transfer per
// assignment even under concurrent retries; a successful transfer whose
// local record fails is surfaced with the transfer id and queued for
// reconciliation rather than silently lost.
func ProcessPayout(c middleware.Context) {
	var req paymaster.ProcessPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.AssignmentID == "" || req.CPOID == "" {
		recordPayoutOperation("invalid")
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "assignmentId and cpoId are required"})
		return
	}
	if req.Amount <= 0 {
		recordPayoutOperation("invalid")
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "amount must be a positive number"})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "GBP"
	}

	adminID := c.GetString(string(ctxkeys.KeyUserID))
	log := logger.WithFields(logging.Fields{
		"assignment_id": req.AssignmentID,
		"cpo_id":        req.CPOID,
		"amount":        req.Amount,
		"processed_by":  adminID,
	})

	// Precondition 1: contractor exists and can receive funds.
	var role string
	var connectAccountID sql.NullString
	err := db.QueryRow(`
		SELECT role, stripe_connect_account_id
		FROM paymaster.profiles
		WHERE id = $1
	`, req.CPOID).Scan(&role, &connectAccountID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (role != auth.RoleCPO || !connectAccountID.Valid || connectAccountID.String == "")) {
		recordPayoutOperation("cpo_not_found")
		c.JSON(http.StatusNotFound, paymaster.ErrorResponse{Error: "CPO not found or not configured for payouts"})
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load CPO profile")
		payoutFailure(c, http.StatusInternalServerError, fmt.Sprintf("Failed to load CPO profile: %v", err))
		return
	}

	// Precondition 2: assignment exists.
	var status string
	var paymentStatus sql.NullString
	err = db.QueryRow(`
		SELECT status, payment_status
		FROM paymaster.protection_assignments
		WHERE id = $1
	`, req.AssignmentID).Scan(&status, &paymentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		recordPayoutOperation("assignment_not_found")
		c.JSON(http.StatusNotFound, paymaster.ErrorResponse{Error: "Assignment not found"})
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load assignment")
		payoutFailure(c, http.StatusInternalServerError, fmt.Sprintf("Failed to load assignment: %v", err))
		return
	}

	// Precondition 3: completed and paid.
	if status != "completed" || !paymentStatus.Valid || paymentStatus.String != "succeeded" {
		recordPayoutOperation("not_eligible")
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Assignment must be completed and paid before payout"})
		return
	}

	// Claim the assignment. Zero rows means another payout for it is in
	// flight or already done; no transfer may be attempted.
	claim, err := db.Exec(`
		UPDATE paymaster.protection_assignments
		SET payout_status = 'processing', updated_at = NOW()
		WHERE id = $1 AND (payout_status IS NULL OR payout_status = 'pending')
	`, req.AssignmentID)
	if err != nil {
		log.WithError(err).Error("Failed to claim assignment for payout")
		payoutFailure(c, http.StatusInternalServerError, fmt.Sprintf("Failed to claim assignment: %v", err))
		return
	}
	if affected, _ := claim.RowsAffected(); affected == 0 {
		recordPayoutOperation("duplicate")
		c.JSON(http.StatusConflict, paymaster.ErrorResponse{Error: "Payout already processed or in progress for this assignment"})
		return
	}

	amount := decimal.NewFromFloat(req.Amount).Round(2)

	tr, err := stripeAPI.CreateTransfer(c.Request.Context(), stripeclient.TransferParams{
		AmountMinor:  ToMinorUnits(amount),
		Currency:     strings.ToLower(currency),
		Destination:  connectAccountID.String,
		AssignmentID: req.AssignmentID,
		CPOID:        req.CPOID,
	})
	if err != nil {
		// Release the claim so a manual admin retry stays possible.
		if _, relErr := db.Exec(`
			UPDATE paymaster.protection_assignments
			SET payout_status = 'pending', updated_at = NOW()
			WHERE id = $1 AND payout_status = 'processing'
		`, req.AssignmentID); relErr != nil {
			log.WithError(relErr).Error("Failed to release payout claim after transfer failure")
		}
		recordTransfer("failed")
		recordPayoutOperation("transfer_failed")
		log.WithError(err).Error("Stripe transfer failed")
		payoutFailure(c, http.StatusInternalServerError, fmt.Sprintf("Transfer failed: %v", err))
		return
	}
	recordTransfer("created")

	payoutID := uuid.New().String()
	_, err = db.Exec(`
		INSERT INTO paymaster.cpo_payouts
			(id, cpo_id, assignment_id, amount, currency, stripe_transfer_id, status, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed', $7)
	`, payoutID, req.CPOID, req.AssignmentID, amount.InexactFloat64(), currency, tr.ID, adminID)
	if err != nil {
		// Money has moved but the record failed. Never report this as
		// "nothing happened": surface the transfer id and queue it for
		// operator reconciliation.
		log.WithError(err).WithField("transfer_id", tr.ID).Error("Transfer succeeded but payout record failed")
		enqueueReconciliation(reconciliationEntry{
			Type:         "orphaned_transfer",
			AssignmentID: req.AssignmentID,
			CPOID:        req.CPOID,
			TransferID:   tr.ID,
			Amount:       amount.InexactFloat64(),
			Currency:     currency,
			Detail:       fmt.Sprintf("payout insert failed: %v", err),
		})
		recordPayoutOperation("orphaned_transfer")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{
			Error:      fmt.Sprintf("Transfer %s completed but payout record failed: %v", tr.ID, err),
			TransferID: tr.ID,
			Amount:     amount.InexactFloat64(),
		})
		return
	}

	_, err = db.Exec(`
		UPDATE paymaster.protection_assignments
		SET payout_status = 'completed', payout_id = $1, updated_at = NOW()
		WHERE id = $2
	`, payoutID, req.AssignmentID)
	if err != nil {
		// The payout row is the source of truth; the stale assignment flag
		// goes to the reconciliation queue instead of failing the payout.
		log.WithError(err).WithField("payout_id", payoutID).Warn("Payout recorded but assignment flag update failed")
		enqueueReconciliation(reconciliationEntry{
			Type:         "assignment_flag",
			AssignmentID: req.AssignmentID,
			CPOID:        req.CPOID,
			TransferID:   tr.ID,
			Amount:       amount.InexactFloat64(),
			Currency:     currency,
			Detail:       fmt.Sprintf("assignment payout flag update failed: %v", err),
		})
	}

	recordPayoutOperation("completed")
	log.WithFields(logging.Fields{
		"payout_id":   payoutID,
		"transfer_id": tr.ID,
	}).Info("Payout processed")

	c.JSON(http.StatusOK, paymaster.ProcessPayoutResponse{
		Success:      true,
		PayoutID:     payoutID,
		TransferID:   tr.ID,
		Amount:       amount.InexactFloat64(),
		CPOID:        req.CPOID,
		AssignmentID: req.AssignmentID,
		Status:       "completed",
	})
}

// ListPayouts returns payout history. Admins see everything (optionally
// filtered by cpo_id); contractors see only their own rows.
func ListPayouts(c middleware.Context) {
	callerID := c.GetString(string(ctxkeys.KeyUserID))
	callerRole := c.GetString(string(ctxkeys.KeyRole))

	cpoFilter := c.Query("cpo_id")
	switch callerRole {
	case auth.RoleAdmin, auth.RoleService:
		// Any filter is allowed.
	case auth.RoleCPO:
		if cpoFilter != "" && cpoFilter != callerID {
			c.JSON(http.StatusForbidden, paymaster.ErrorResponse{Error: "Cannot view payouts for another CPO"})
			return
		}
		cpoFilter = callerID
	default:
		c.JSON(http.StatusForbidden, paymaster.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, cpo_id, assignment_id, amount, currency, stripe_transfer_id, status, processed_at, processed_by
		FROM paymaster.cpo_payouts
	`
	args := []interface{}{}
	if cpoFilter != "" {
		query += ` WHERE cpo_id = $1 ORDER BY processed_at DESC LIMIT $2 OFFSET $3`
		args = append(args, cpoFilter, limit, offset)
	} else {
		query += ` ORDER BY processed_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		logger.WithError(err).Error("Failed to list payouts")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to list payouts"})
		return
	}
	defer rows.Close()

	payouts := []models.CPOPayout{}
	for rows.Next() {
		var p models.CPOPayout
		if err := rows.Scan(&p.ID, &p.CPOID, &p.AssignmentID, &p.Amount, &p.Currency,
			&p.StripeTransferID, &p.Status, &p.ProcessedAt, &p.ProcessedBy); err != nil {
			logger.WithError(err).Error("Error scanning payout row")
			c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to list payouts"})
			return
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		logger.WithError(err).Error("Error iterating payout rows")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to list payouts"})
		return
	}

	c.JSON(http.StatusOK, paymaster.ListPayoutsResponse{
		Payouts: payouts,
		Count:   len(payouts),
		Limit:   limit,
		Offset:  offset,
	})
}

func payoutFailure(c middleware.Context, status int, msg string) {
	recordPayoutOperation("failed")
	c.JSON(status, paymaster.ProcessPayoutResponse{
		Success: false,
		Error:   msg,
		Status:  "failed",
	})
}

func recordPayoutOperation(status string) {
	if metrics != nil {
		metrics.PayoutOperations.WithLabelValues(status).Inc()
	}
}

func recordTransfer(status string) {
	if metrics != nil {
		metrics.Transfers.WithLabelValues(status).Inc()
	}
}
