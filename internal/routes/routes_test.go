package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"menupay/internal/handlers"
	"menupay/internal/middleware"
	"menupay/internal/models"
	"menupay/internal/services/payment"
	"menupay/internal/services/refund"
	"menupay/internal/services/settlement"
	"menupay/internal/services/webhook"
	"menupay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "routes-test"

type testServer struct {
	app        *fiber.App
	payments   *MockPaymentService
	refunds    *MockRefundService
	webhooks   *MockWebhookService
	processors *MockProcessorService
	settlement *MockSettlementService
	dbDown     bool
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		payments:   &MockPaymentService{},
		refunds:    &MockRefundService{},
		webhooks:   &MockWebhookService{},
		processors: &MockProcessorService{},
		settlement: &MockSettlementService{},
	}
	s.app = fiber.New()
	SetupRoutes(s.app, Handlers{
		Payments:   handlers.NewPaymentHandler(s.payments, s.refunds),
		Webhooks:   handlers.NewWebhookHandler(s.webhooks),
		Processors: handlers.NewProcessorHandler(s.processors),
		Payouts:    handlers.NewPayoutHandler(s.settlement),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": handlers.PingerFunc(func(ctx context.Context) error {
				if s.dbDown {
					return errors.New("down")
				}
				return nil
			}),
		}),
	}, middleware.NewAuthMiddleware(jwtSecret))
	return s
}

func token(t *testing.T, businessID uint, role string) string {
	t.Helper()
	signed, err := utils.GenerateToken(jwtSecret, models.UserClaims{
		UserID:      3,
		BusinessID:  businessID,
		Role:        role,
		Permissions: models.GetDefaultPermissions(role),
	}, time.Hour)
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, auth, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestCreatePayment(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *MockPaymentService)
		wantStatus int
	}{
		{
			name: "created",
			body: `{"order_id":"o-1","processor_id":4,"customer_email":"a@b.co"}`,
			setup: func(m *MockPaymentService) {
				m.On("PayOrder", mock.Anything, "o-1", uint(1), mock.MatchedBy(func(p *uint) bool { return p != nil && *p == 4 }), payment.Options{CustomerEmail: "a@b.co"}).
					Return(&payment.PaymentIntentResult{Payment: &models.Payment{PublicID: "pay-1"}}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{name: "missing order", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"order_id":`, wantStatus: http.StatusBadRequest},
		{
			name: "already paid",
			body: `{"order_id":"o-2"}`,
			setup: func(m *MockPaymentService) {
				m.On("PayOrder", mock.Anything, "o-2", uint(1), (*uint)(nil), payment.Options{}).Return(nil, models.ErrOrderAlreadyPaid)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "no active processor",
			body: `{"order_id":"o-3"}`,
			setup: func(m *MockPaymentService) {
				m.On("PayOrder", mock.Anything, "o-3", uint(1), (*uint)(nil), payment.Options{}).Return(nil, models.ErrNoActiveProcessor)
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "all processors exhausted",
			body: `{"order_id":"o-4"}`,
			setup: func(m *MockPaymentService) {
				m.On("PayOrder", mock.Anything, "o-4", uint(1), (*uint)(nil), payment.Options{}).
					Return(nil, fmt.Errorf("%w after 2 attempts", models.ErrAllProcessorsExhausted))
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "unexpected error hides details",
			body: `{"order_id":"o-5"}`,
			setup: func(m *MockPaymentService) {
				m.On("PayOrder", mock.Anything, "o-5", uint(1), (*uint)(nil), payment.Options{}).Return(nil, errors.New("pq: connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			if tt.setup != nil {
				tt.setup(s.payments)
			}
			status, body := s.do(t, "POST", "/api/businesses/1/payments", token(t, 1, models.RoleOwner), tt.body, nil)
			assert.Equal(t, tt.wantStatus, status)
			if status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body["error"])
			}
			s.payments.AssertExpectations(t)
		})
	}
}

func TestBusinessScoping(t *testing.T) {
	s := newServer(t)
	status, _ := s.do(t, "GET", "/api/businesses/2/payments", token(t, 1, models.RoleOwner), "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, "GET", "/api/businesses/1/payments", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	s.payments.On("ListPayments", mock.Anything, uint(2), "succeeded", 10, 10).Return([]models.Payment{{PublicID: "p"}}, int64(11), nil)
	status, body := s.do(t, "GET", "/api/businesses/2/payments?status=succeeded&page=2&limit=10", token(t, 0, models.RoleAdmin), "", nil)
	assert.Equal(t, http.StatusOK, status)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total_pages"])
}

func TestCreateRefund(t *testing.T) {
	s := newServer(t)
	owner := token(t, 1, models.RoleOwner)

	s.refunds.On("CreateRefund", mock.Anything, uint(1), "pay-1", mock.MatchedBy(func(a *int64) bool { return a != nil && *a == 500 }), "late").
		Return(&refund.RefundResult{RefundID: "r-1", Amount: 500, Status: models.RefundStatusSucceeded}, nil).Once()
	status, _ := s.do(t, "POST", "/api/businesses/1/payments/pay-1/refunds", owner, `{"amount":500,"reason":"late"}`, nil)
	assert.Equal(t, http.StatusCreated, status)

	s.refunds.On("CreateRefund", mock.Anything, uint(1), "pay-1", (*int64)(nil), "").
		Return(&refund.RefundResult{RefundID: "r-2", Status: models.RefundStatusFailed}, fmt.Errorf("%w: declined", refund.ErrProviderRejected)).Once()
	status, body := s.do(t, "POST", "/api/businesses/1/payments/pay-1/refunds", owner, "", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "r-2", body["data"].(map[string]interface{})["refund_id"])

	s.refunds.On("CreateRefund", mock.Anything, uint(1), "pay-2", mock.Anything, "").
		Return(nil, models.ErrRefundExceedsBalance).Once()
	status, _ = s.do(t, "POST", "/api/businesses/1/payments/pay-2/refunds", owner, `{"amount":99999}`, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, "POST", "/api/businesses/1/payments/pay-1/refunds", owner, `{"amount":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	s.refunds.AssertExpectations(t)
}

func TestWebhookRoutes(t *testing.T) {
	s := newServer(t)
	payload := `{"event":"payment_link.paid"}`

	s.webhooks.On("HandleWebhook", mock.Anything, "upi", []byte(payload), "sig-1", (*uint)(nil)).
		Return(&webhook.Result{Processed: true, EventID: "evt_1", Outcome: models.EventOutcomeApplied}, nil).Once()
	status, body := s.do(t, "POST", "/webhooks/upi", "", payload, map[string]string{"X-Razorpay-Signature": "sig-1"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["processed"])

	s.webhooks.On("HandleWebhook", mock.Anything, "card", []byte(payload), "t=1,v1=x", mock.MatchedBy(func(id *uint) bool { return id != nil && *id == 7 })).
		Return(nil, models.ErrInvalidSignature).Once()
	status, _ = s.do(t, "POST", "/webhooks/card/7", "", payload, map[string]string{"Stripe-Signature": "t=1,v1=x"})
	assert.Equal(t, http.StatusBadRequest, status)

	s.webhooks.On("HandleWebhook", mock.Anything, "wallet", []byte(payload), "", (*uint)(nil)).
		Return(nil, models.ErrPaymentNotFound).Once()
	status, _ = s.do(t, "POST", "/webhooks/wallet", "", payload, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, "POST", "/webhooks/paypal", "", payload, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, "POST", "/webhooks/upi/abc", "", payload, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	s.webhooks.AssertExpectations(t)
}

func TestProcessorRoutes(t *testing.T) {
	s := newServer(t)
	owner := token(t, 1, models.RoleOwner)

	status, body := s.do(t, "POST", "/api/businesses/1/processors", owner, `{"variant":"crypto","fee_percent":"120"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	errs := body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "variant")
	assert.Contains(t, errs, "fee_percent")
	assert.Contains(t, errs, "credentials")

	s.processors.On("Create", mock.Anything, mock.AnythingOfType("processor.CreateRequest")).
		Return(&models.PaymentProcessorConfig{ID: 4, BusinessID: 1, Variant: models.VariantUPI}, nil).Once()
	status, _ = s.do(t, "POST", "/api/businesses/1/processors", owner,
		`{"variant":"upi","fee_percent":"2.0","credentials":{"secret_key":"s","public_key":"p","webhook_secret":"w"}}`, nil)
	assert.Equal(t, http.StatusCreated, status)

	s.processors.On("Activate", mock.Anything, uint(1), uint(4)).Return(nil, models.ErrProcessorNotFound).Once()
	status, _ = s.do(t, "POST", "/api/businesses/1/processors/4/activate", owner, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	s.processors.AssertExpectations(t)
}

func TestPayoutRoutes(t *testing.T) {
	s := newServer(t)
	owner := token(t, 1, models.RoleOwner)
	admin := token(t, 0, models.RoleAdmin)

	s.settlement.On("RunSchedule", mock.Anything, uint(1), uint(4)).Return(nil, models.ErrScheduleLocked).Once()
	status, _ := s.do(t, "POST", "/api/businesses/1/schedules/4/run", owner, "", nil)
	assert.Equal(t, http.StatusConflict, status)

	s.settlement.On("RunSchedule", mock.Anything, uint(1), uint(4)).
		Return(&settlement.RunResult{SkipReason: settlement.SkipBelowThreshold}, nil).Once()
	status, body := s.do(t, "POST", "/api/businesses/1/schedules/4/run", owner, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "No payout this cycle", body["message"])

	status, _ = s.do(t, "PATCH", "/api/businesses/1/schedules/4", owner, `{"frequency":"hourly"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, "PATCH", "/api/admin/payouts/9/status", owner, `{"status":"paid"}`, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, "PATCH", "/api/admin/payouts/9/status", admin, `{"status":"failed"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	s.settlement.On("UpdatePayoutStatus", mock.Anything, uint(9), settlement.StatusUpdate{Status: "paid", ProviderTransactionID: "po_1"}).
		Return(&models.Payout{ID: 9, Status: models.PayoutStatusPaid}, nil).Once()
	status, _ = s.do(t, "PATCH", "/api/admin/payouts/9/status", admin, `{"status":"paid","provider_transaction_id":"po_1"}`, nil)
	assert.Equal(t, http.StatusOK, status)

	s.settlement.On("RetryPayout", mock.Anything, uint(1), uint(9)).Return(nil, settlement.ErrInvalidPayoutStatus).Once()
	status, _ = s.do(t, "POST", "/api/businesses/1/payouts/9/retry", owner, "", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, "GET", "/api/businesses/1/reports/settlement?from=2026-03-10&to=2026-03-01", owner, "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.settlement.On("Report", mock.Anything, uint(1), from, to).Return(&settlement.Report{BusinessID: 1, Gross: 100}, nil).Once()
	status, _ = s.do(t, "GET", "/api/businesses/1/reports/settlement?from=2026-03-01&to=2026-04-01", owner, "", nil)
	assert.Equal(t, http.StatusOK, status)

	s.settlement.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	status, body := s.do(t, "GET", "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	s.dbDown = true
	status, body = s.do(t, "GET", "/health", "", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
}
