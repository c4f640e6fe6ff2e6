package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	stripesdk "github.com/stripe/stripe-go/v82"

	stripeclient "armora/api_payments/internal/stripe"
	"armora/api_payments/pkg/ctxkeys"
	"armora/api_payments/pkg/logging"
)

// stubStripeClient records calls instead of hitting the Stripe API.
type stubStripeClient struct {
	transfers   []stripeclient.TransferParams
	transferErr error

	intents   []stripeclient.PaymentIntentParams
	intentErr error

	event     *stripesdk.Event
	verifyErr error
	intent    *stripesdk.PaymentIntent
}

func (s *stubStripeClient) CreateTransfer(ctx context.Context, params stripeclient.TransferParams) (*stripesdk.Transfer, error) {
	s.transfers = append(s.transfers, params)
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	return &stripesdk.Transfer{ID: "tr_test_1"}, nil
}

func (s *stubStripeClient) CreatePaymentIntent(ctx context.Context, params stripeclient.PaymentIntentParams) (*stripesdk.PaymentIntent, error) {
	s.intents = append(s.intents, params)
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return &stripesdk.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

func (s *stubStripeClient) VerifyAndParseWebhook(payload []byte, signature string) (*stripesdk.Event, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.event, nil
}

func (s *stubStripeClient) PaymentIntentFromEvent(event *stripesdk.Event) (*stripesdk.PaymentIntent, error) {
	return s.intent, nil
}

// setupTest wires the handler package globals to a sqlmock database and a
// stub Stripe client.
func setupTest(t *testing.T) (sqlmock.Sqlmock, *stubStripeClient) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	stub := &stubStripeClient{}
	Init(mockDB, logging.NewLogger(), stub, nil)
	t.Cleanup(func() { Init(nil, nil, nil, nil) })

	return mock, stub
}

// authAs injects a fake caller identity, standing in for JWTAuthMiddleware.
func authAs(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyUserID), userID)
		c.Set(string(ctxkeys.KeyRole), role)
	}
}

func performJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

var errDatabaseDown = errors.New("database down")

func init() {
	gin.SetMode(gin.TestMode)
}
