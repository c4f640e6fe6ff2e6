package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"armora/api_payments/pkg/api/paymaster"
	"armora/api_payments/pkg/ctxkeys"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/middleware"
	"armora/api_payments/pkg/models"
)

type reconciliationEntry struct {
	Type         string
	AssignmentID string
	CPOID        string
	TransferID   string
	Amount       float64
	Currency     string
	Detail       string
}

// enqueueReconciliation records a money movement whose bookkeeping did not
// complete. Best-effort: the caller has already surfaced the failure; if
// even the queue insert fails, the log line is the last resort.
func enqueueReconciliation(entry reconciliationEntry) {
	_, err := db.Exec(`
		INSERT INTO paymaster.payout_reconciliations
			(id, reconciliation_type, assignment_id, cpo_id, stripe_transfer_id, amount, currency, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.New().String(), entry.Type, entry.AssignmentID, entry.CPOID,
		entry.TransferID, entry.Amount, entry.Currency, entry.Detail)
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"reconciliation_type": entry.Type,
			"assignment_id":       entry.AssignmentID,
			"transfer_id":         entry.TransferID,
			"amount":              entry.Amount,
		}).Error("Failed to enqueue payout reconciliation - manual follow-up required")
	}
}

// ListReconciliations returns the open operator queue. Admin only.
func ListReconciliations(c middleware.Context) {
	rows, err := db.Query(`
		SELECT id, reconciliation_type, assignment_id, cpo_id, stripe_transfer_id,
		       amount, currency, detail, status, resolved_by, resolution_note, created_at, resolved_at
		FROM paymaster.payout_reconciliations
		WHERE status = 'open'
		ORDER BY created_at ASC
	`)
	if err != nil {
		logger.WithError(err).Error("Failed to list reconciliations")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to list reconciliations"})
		return
	}
	defer rows.Close()

	items := []models.PayoutReconciliation{}
	for rows.Next() {
		var r models.PayoutReconciliation
		if err := rows.Scan(&r.ID, &r.Type, &r.AssignmentID, &r.CPOID, &r.StripeTransferID,
			&r.Amount, &r.Currency, &r.Detail, &r.Status, &r.ResolvedBy, &r.ResolutionNote,
			&r.CreatedAt, &r.ResolvedAt); err != nil {
			logger.WithError(err).Error("Error scanning reconciliation row")
			c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to list reconciliations"})
			return
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		logger.WithError(err).Error("Error iterating reconciliation rows")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to list reconciliations"})
		return
	}

	c.JSON(http.StatusOK, paymaster.ListReconciliationsResponse{
		Reconciliations: items,
		Count:           len(items),
	})
}

// ResolveReconciliation marks a queue row handled. Admin only.
func ResolveReconciliation(c middleware.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Reconciliation ID required"})
		return
	}

	var req paymaster.ResolveReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Invalid request body"})
		return
	}

	adminID := c.GetString(string(ctxkeys.KeyUserID))

	var status string
	err := db.QueryRow(`
		UPDATE paymaster.payout_reconciliations
		SET status = 'resolved', resolved_by = $1, resolution_note = $2, resolved_at = NOW()
		WHERE id = $3 AND status = 'open'
		RETURNING status
	`, adminID, req.Note, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, paymaster.ErrorResponse{Error: "Reconciliation not found or already resolved"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("reconciliation_id", id).Error("Failed to resolve reconciliation")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: "Failed to resolve reconciliation"})
		return
	}

	logger.WithFields(logging.Fields{
		"reconciliation_id": id,
		"resolved_by":       adminID,
	}).Info("Reconciliation resolved")

	c.JSON(http.StatusOK, paymaster.ResolveReconciliationResponse{
		Success: true,
		ID:      id,
		Status:  status,
	})
}
