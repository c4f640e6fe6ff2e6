package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"armora/api_payments/pkg/api/paymaster"
	"armora/api_payments/pkg/ctxkeys"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/middleware"
	"armora/api_payments/pkg/models"
)

// Marketplace fee constants. Client markup, platform fee and CPO share are
// each applied to the base subtotal independently; they are not a partition
// of the client payment.
var (
	clientMarkupRate  = decimal.NewFromFloat(0.20)
	platformFeeRate   = decimal.NewFromFloat(0.35)
	cpoShareRate      = decimal.NewFromFloat(0.85)
	clientPaysFactor  = decimal.NewFromInt(1).Add(clientMarkupRate)
	minorUnitsPerUnit = decimal.NewFromInt(100)
)

// FeeBreakdown is the decimal-exact split of one booking subtotal.
type FeeBreakdown struct {
	Subtotal    decimal.Decimal
	ClientPays  decimal.Decimal
	PlatformFee decimal.Decimal
	CPOReceives decimal.Decimal
}

// SplitFees computes the marketplace split for a base rate and duration.
// All amounts are rounded to 2 decimal places.
func SplitFees(baseRate, hours decimal.Decimal) FeeBreakdown {
	subtotal := baseRate.Mul(hours).Round(2)
	return FeeBreakdown{
		Subtotal:    subtotal,
		ClientPays:  subtotal.Mul(clientPaysFactor).Round(2),
		PlatformFee: subtotal.Mul(platformFeeRate).Round(2),
		CPOReceives: subtotal.Mul(cpoShareRate).Round(2),
	}
}

// ToMinorUnits converts a decimal currency amount to integer minor units
// (pence for GBP), rounding to the nearest whole unit.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerUnit).Round(0).IntPart()
}

// CalculateFees returns the full financial breakdown for a booking quote.
// Any authenticated identity may request a fee preview.
func CalculateFees(c middleware.Context) {
	var req paymaster.CalculateFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.BaseRate <= 0 {
		recordFeeCalculation("invalid")
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "baseRate must be a positive number"})
		return
	}
	if req.Hours <= 0 {
		recordFeeCalculation("invalid")
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "hours must be a positive number"})
		return
	}
	if !models.ValidProtectionLevel(req.ProtectionLevel) {
		recordFeeCalculation("invalid")
		c.JSON(http.StatusBadRequest, paymaster.ErrorResponse{Error: "protectionLevel must be one of essential, executive, shadow_protocol, client_vehicle"})
		return
	}

	breakdown := SplitFees(decimal.NewFromFloat(req.BaseRate), decimal.NewFromFloat(req.Hours))

	// The audit row is best-effort: a quote must never fail because the
	// audit log is unavailable.
	userID := c.GetString(string(ctxkeys.KeyUserID))
	if err := insertFeeAudit(userID, req, breakdown); err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"user_id": userID,
		}).Warn("Failed to record fee calculation audit row")
	}

	recordFeeCalculation("success")

	clientMarkup, _ := clientMarkupRate.Float64()
	platformPct, _ := platformFeeRate.Float64()
	cpoPct, _ := cpoShareRate.Float64()

	c.JSON(http.StatusOK, paymaster.CalculateFeesResponse{
		BaseRate:    req.BaseRate,
		Hours:       req.Hours,
		Subtotal:    breakdown.Subtotal.InexactFloat64(),
		ClientPays:  breakdown.ClientPays.InexactFloat64(),
		PlatformFee: breakdown.PlatformFee.InexactFloat64(),
		CPOReceives: breakdown.CPOReceives.InexactFloat64(),
		Breakdown: paymaster.FeeBreakdownRates{
			ClientMarkup:          clientMarkup,
			PlatformFeePercentage: platformPct,
			CPOPercentage:         cpoPct,
		},
	})
}

func insertFeeAudit(userID string, req paymaster.CalculateFeesRequest, breakdown FeeBreakdown) error {
	_, err := db.Exec(`
		INSERT INTO paymaster.fee_calculations
			(id, user_id, protection_level, base_rate, hours, subtotal, client_pays, platform_fee, cpo_receives)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New().String(), userID, req.ProtectionLevel, req.BaseRate, req.Hours,
		breakdown.Subtotal.InexactFloat64(), breakdown.ClientPays.InexactFloat64(),
		breakdown.PlatformFee.InexactFloat64(), breakdown.CPOReceives.InexactFloat64())
	return err
}

func recordFeeCalculation(status string) {
	if metrics != nil {
		metrics.FeeCalculations.WithLabelValues(status).Inc()
	}
}
