package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"armora/api_payments/pkg/api/paymaster"
)

func earningsRouter(userID, role string) *gin.Engine {
	r := gin.New()
	r.POST("/earnings", authAs(userID, role), GetEarnings)
	return r
}

func TestResolveDateRange(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	start, end, err := ResolveDateRange(PeriodWeek, "", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected week start %v, got %v", want, start)
	}
	if !end.Equal(now) {
		t.Fatalf("expected end to be exact now, got %v", end)
	}

	start, _, err = ResolveDateRange(PeriodMonth, "", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected month start %v, got %v", want, start)
	}

	start, _, err = ResolveDateRange(PeriodAll, "", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("expected epoch start, got %v", start)
	}

	// Explicit bounds win over the period keyword.
	start, end, err = ResolveDateRange(PeriodWeek, "2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Format(time.RFC3339) != "2024-01-01T00:00:00Z" || end.Format(time.RFC3339) != "2024-02-01T00:00:00Z" {
		t.Fatalf("explicit bounds not honoured: %v .. %v", start, end)
	}

	if _, _, err := ResolveDateRange("quarter", "", "", now); err == nil {
		t.Fatalf("expected error for unknown period")
	}
	if _, _, err := ResolveDateRange(PeriodWeek, "not-a-date", "", now); err == nil {
		t.Fatalf("expected error for malformed startDate")
	}
}

func TestGetEarningsForbidsOtherCPO(t *testing.T) {
	setupTest(t)
	r := earningsRouter("cpo-1", "cpo")

	w := performJSON(t, r, "POST", "/earnings", paymaster.EarningsRequest{
		CPOID: "cpo-2", Period: PeriodWeek,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetEarningsDefaultsToSelf(t *testing.T) {
	mock, _ := setupTest(t)
	r := earningsRouter("cpo-1", "cpo")

	processedAt := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, cpo_id, assignment_id").
		WithArgs("cpo-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "cpo_id", "assignment_id", "amount", "currency", "stripe_transfer_id", "status", "processed_at", "processed_by",
		}).
			AddRow("p1", "cpo-1", "a1", 127.50, "GBP", "tr_1", "completed", processedAt, "admin-1").
			AddRow("p2", "cpo-1", "a2", 85.00, "GBP", "tr_2", "completed", processedAt, "admin-1"))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(cpo_amount\), 0\), COUNT\(\*\)`).
		WithArgs("cpo-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(212.50, 2))

	w := performJSON(t, r, "POST", "/earnings", paymaster.EarningsRequest{Period: PeriodMonth})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp paymaster.EarningsResponse
	decodeBody(t, w, &resp)

	if resp.CPOID != "cpo-1" {
		t.Fatalf("expected cpoId to default to caller, got %q", resp.CPOID)
	}
	if resp.TotalEarnings != 212.50 || resp.TotalPayouts != 2 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
	if resp.PendingEarnings != 212.50 || resp.PendingPayouts != 2 {
		t.Fatalf("unexpected pending figures: %+v", resp)
	}
	if len(resp.Payouts) != 2 {
		t.Fatalf("expected raw payout list, got %d rows", len(resp.Payouts))
	}
	if resp.Currency != "GBP" {
		t.Fatalf("expected GBP, got %q", resp.Currency)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetEarningsAdminMayQueryAnyCPO(t *testing.T) {
	mock, _ := setupTest(t)
	r := earningsRouter("admin-1", "admin")

	mock.ExpectQuery("SELECT id, cpo_id, assignment_id").
		WithArgs("cpo-9", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "cpo_id", "assignment_id", "amount", "currency", "stripe_transfer_id", "status", "processed_at", "processed_by",
		}))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(cpo_amount\), 0\), COUNT\(\*\)`).
		WithArgs("cpo-9", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(0.0, 0))

	w := performJSON(t, r, "POST", "/earnings", paymaster.EarningsRequest{
		CPOID: "cpo-9", Period: PeriodAll,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp paymaster.EarningsResponse
	decodeBody(t, w, &resp)
	if resp.TotalEarnings != 0 || resp.PendingPayouts != 0 {
		t.Fatalf("expected empty report, got %+v", resp)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetEarningsQueryErrorAbortsWholeRequest(t *testing.T) {
	mock, _ := setupTest(t)
	r := earningsRouter("cpo-1", "cpo")

	mock.ExpectQuery("SELECT id, cpo_id, assignment_id").
		WillReturnError(errDatabaseDown)

	w := performJSON(t, r, "POST", "/earnings", paymaster.EarningsRequest{Period: PeriodWeek})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}

	var resp paymaster.ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Error == "" {
		t.Fatalf("expected surfaced error message")
	}
}

func TestGetEarningsInvalidPeriod(t *testing.T) {
	setupTest(t)
	r := earningsRouter("cpo-1", "cpo")

	w := performJSON(t, r, "POST", "/earnings", paymaster.EarningsRequest{Period: "fortnight"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
