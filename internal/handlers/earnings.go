package handlers

import (
	"fmt"
	"net/http"
	"time"

	"armora/api_payments/pkg/api/paymaster"
	"armora/api_payments/pkg/auth"
	"armora/api_payments/pkg/ctxkeys"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/middleware"
	"armora/api_payments/pkg/models"
)

// Earnings reporting periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// ResolveDateRange turns a period keyword plus optional explicit bounds into
// a concrete window. Explicit RFC3339 bounds win; otherwise the window ends
// at exactly now.
func ResolveDateRange(period, startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	start := time.Time{}
	end := now

	switch period {
	case PeriodWeek:
		start = now.AddDate(0, 0, -7)
	case PeriodMonth:
		start = now.AddDate(0, -1, 0)
	case PeriodYear:
		start = now.AddDate(-1, 0, 0)
	case PeriodAll:
		start = time.Unix(0, 0).UTC()
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("period must be one of week, month, year, all")
	}

	if startDate != "" {
		parsed, err := time.Parse(time.RFC3339, startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("startDate must be RFC3339")
		}
		start = parsed
	}
	if endDate != "" {
		parsed, err := time.Parse(time.RFC3339, endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("endDate must be RFC3339")
		}
		end = parsed
	}

	return start, end, nil
}

// GetEarnings returns a contractor's reconciled earnings: completed payouts
// plus pending amounts for completed, paid assignments that have not been
// paid out yet. Contractors may only query themselves; admins may query
// anyone.
func GetEarnings(c middleware.Context) {
	var req paymaster.EarningsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Invalid request body"})
		return
	}

	callerID := c.GetString(string(ctxkeys.KeyUserID))
	callerRole := c.GetString(string(ctxkeys.KeyRole))

	cpoID := req.CPOID
	if cpoID == "" {
		cpoID = callerID
	}
	if !auth.CanActFor(callerID, callerRole, cpoID) {
		c.JSON(http.StatusForbidden, paymaster.ErrorResponse{Error: "Cannot view earnings for another CPO"})
		return
	}

	start, end, err := ResolveDateRange(req.Period, req.StartDate, req.EndDate, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: err.Error()})
		return
	}

	payouts, totalEarnings, err := queryCompletedPayouts(cpoID, start, end)
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"cpo_id": cpoID,
		}).Error("Failed to query completed payouts")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: fmt.Sprintf("Failed to query payouts: %v", err)})
		return
	}

	pendingEarnings, pendingPayouts, err := queryPendingEarnings(cpoID, start, end)
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"cpo_id": cpoID,
		}).Error("Failed to query pending earnings")
		c.JSON(http.StatusInternalServerError, paymaster.ErrorResponse{Error: fmt.Sprintf("Failed to query pending earnings: %v", err)})
		return
	}

	c.JSON(http.StatusOK, paymaster.EarningsResponse{
		CPOID:           cpoID,
		Period:          req.Period,
		TotalEarnings:   totalEarnings,
		TotalPayouts:    len(payouts),
		PendingEarnings: pendingEarnings,
		PendingPayouts:  pendingPayouts,
		Currency:        "GBP",
		Payouts:         payouts,
		DateRange: paymaster.DateRange{
			Start: start.Format(time.RFC3339),
			End:   end.Format(time.RFC3339),
		},
	})
}

func queryCompletedPayouts(cpoID string, start, end time.Time) ([]models.CPOPayout, float64, error) {
	rows, err := db.Query(`
		SELECT id, cpo_id, assignment_id, amount, currency, stripe_transfer_id, status, processed_at, processed_by
		FROM paymaster.cpo_payouts
		WHERE cpo_id = $1 AND status = 'completed' AND processed_at >= $2 AND processed_at <= $3
		ORDER BY processed_at DESC
	`, cpoID, start, end)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payouts := []models.CPOPayout{}
	total := 0.0
	for rows.Next() {
		var p models.CPOPayout
		if err := rows.Scan(&p.ID, &p.CPOID, &p.AssignmentID, &p.Amount, &p.Currency,
			&p.StripeTransferID, &p.Status, &p.ProcessedAt, &p.ProcessedBy); err != nil {
			return nil, 0, err
		}
		payouts = append(payouts, p)
		total += p.Amount
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return payouts, total, nil
}

func queryPendingEarnings(cpoID string, start, end time.Time) (float64, int, error) {
	var pending float64
	var count int
	err := db.QueryRow(`
		SELECT COALESCE(SUM(cpo_amount), 0), COUNT(*)
		FROM paymaster.protection_assignments
		WHERE cpo_id = $1
		  AND status = 'completed'
		  AND payment_status = 'succeeded'
		  AND (payout_status IS NULL OR payout_status = 'pending')
		  AND completed_at >= $2 AND completed_at <= $3
	`, cpoID, start, end).Scan(&pending, &count)
	if err != nil {
		return 0, 0, err
	}
	return pending, count, nil
}
