package refund

import (
	"context"
	"testing"
	"time"

	"menupay/internal/models"
	"menupay/internal/repositories"
	"menupay/internal/repositories/repotest"
	"menupay/internal/services/gateway"
	"menupay/internal/services/processor"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Variant() models.ProcessorVariant { return models.VariantCard }

func (m *MockAdapter) CreatePayment(ctx context.Context, creds gateway.Credentials, req gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	args := m.Called(ctx, creds, req)
	resp, _ := args.Get(0).(*gateway.PaymentResponse)
	return resp, args.Error(1)
}

func (m *MockAdapter) CreateRefund(ctx context.Context, creds gateway.Credentials, req gateway.RefundRequest) (*gateway.RefundResponse, error) {
	args := m.Called(ctx, creds, req)
	resp, _ := args.Get(0).(*gateway.RefundResponse)
	return resp, args.Error(1)
}

func (m *MockAdapter) VerifyWebhook(creds gateway.Credentials, payload []byte, signature string) (*gateway.Event, error) {
	args := m.Called(creds, payload, signature)
	evt, _ := args.Get(0).(*gateway.Event)
	return evt, args.Error(1)
}

type fixture struct {
	store   repositories.Store
	adapter *MockAdapter
	svc     Service
	payment *models.Payment
}

func newFixture(t *testing.T, status string, refunded int64) *fixture {
	t.Helper()
	ctx := context.Background()
	_, store := repotest.Open(t)

	sealer, err := gateway.NewSealer("refund-test-key")
	require.NoError(t, err)
	processors := processor.NewService(store.Processors(), sealer)
	cfg, err := processors.Create(ctx, processor.CreateRequest{
		BusinessID:  1,
		Variant:     "card",
		Credentials: gateway.Credentials{SecretKey: "sk_card", WebhookSecret: "whsec"},
	})
	require.NoError(t, err)

	captured := "order-1"
	now := time.Now().UTC()
	payment := &models.Payment{
		PublicID:           uuid.NewString(),
		OrderID:            "order-1",
		BusinessID:         1,
		ProcessorConfigID:  cfg.ID,
		Variant:            models.VariantCard,
		ProviderReference:  "pi_1",
		Amount:             10000,
		Currency:           "USD",
		Status:             status,
		RefundedAmount:     refunded,
		CapturedOrderID:    &captured,
		CapturedAt:         &now,
		SettlementEligible: true,
	}
	_, err = store.Payments().CreateIfAbsent(ctx, payment)
	require.NoError(t, err)

	adapter := &MockAdapter{}
	return &fixture{
		store:   store,
		adapter: adapter,
		payment: payment,
		svc:     NewService(store, processors, gateway.NewRegistry(adapter), nil, Config{AdapterTimeout: time.Second}),
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestService_CreateRefundPartialThenFull(t *testing.T) {
	f := newFixture(t, models.PaymentStatusSucceeded, 0)
	ctx := context.Background()

	f.adapter.On("CreateRefund", mock.Anything, mock.Anything, mock.MatchedBy(func(r gateway.RefundRequest) bool {
		return r.ProviderReference == "pi_1" && r.Amount == 3000
	})).Return(&gateway.RefundResponse{ProviderRefundID: "re_1", Status: models.RefundStatusSucceeded}, nil).Once()

	result, err := f.svc.CreateRefund(ctx, 1, f.payment.PublicID, int64Ptr(3000), "cold soup")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusSucceeded, result.Status)
	assert.Equal(t, int64(3000), result.Amount)
	assert.Equal(t, models.PaymentStatusPartiallyRefunded, result.Payment.Status)
	assert.Equal(t, int64(3000), result.Payment.RefundedAmount)

	f.adapter.On("CreateRefund", mock.Anything, mock.Anything, mock.MatchedBy(func(r gateway.RefundRequest) bool {
		return r.Amount == 7000
	})).Return(&gateway.RefundResponse{ProviderRefundID: "re_2", Status: models.RefundStatusSucceeded}, nil).Once()

	result, err = f.svc.CreateRefund(ctx, 1, f.payment.PublicID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7000), result.Amount)
	assert.Equal(t, models.PaymentStatusRefunded, result.Payment.Status)

	stored, err := f.store.Payments().GetByID(ctx, f.payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), stored.RefundedAmount)
	assert.False(t, stored.SettlementEligible)

	f.adapter.AssertExpectations(t)
}

func TestService_CreateRefundRejections(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		refunded   int64
		businessID uint
		amount     *int64
		wantErr    error
	}{
		{name: "exceeds balance", status: models.PaymentStatusSucceeded, businessID: 1, amount: int64Ptr(10001), wantErr: models.ErrRefundExceedsBalance},
		{name: "exceeds remaining after partial", status: models.PaymentStatusPartiallyRefunded, refunded: 6000, businessID: 1, amount: int64Ptr(5000), wantErr: models.ErrRefundExceedsBalance},
		{name: "payment still processing", status: models.PaymentStatusProcessing, businessID: 1, wantErr: models.ErrInvalidPaymentStatus},
		{name: "payment fully refunded", status: models.PaymentStatusRefunded, refunded: 10000, businessID: 1, wantErr: models.ErrInvalidPaymentStatus},
		{name: "negative amount", status: models.PaymentStatusSucceeded, businessID: 1, amount: int64Ptr(-5), wantErr: ErrInvalidAmount},
		{name: "other business", status: models.PaymentStatusSucceeded, businessID: 2, wantErr: models.ErrPaymentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.status, tt.refunded)

			_, err := f.svc.CreateRefund(context.Background(), tt.businessID, f.payment.PublicID, tt.amount, "")
			assert.ErrorIs(t, err, tt.wantErr)
			f.adapter.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)

			refunds, err := f.store.Refunds().ListByPayment(context.Background(), f.payment.ID)
			require.NoError(t, err)
			assert.Empty(t, refunds)
		})
	}
}

func TestService_CreateRefundProviderFailureReleasesReservation(t *testing.T) {
	f := newFixture(t, models.PaymentStatusSucceeded, 0)
	ctx := context.Background()

	f.adapter.On("CreateRefund", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &gateway.Error{Variant: models.VariantCard, Kind: gateway.KindInvalidRequest, Code: "charge_disputed", Message: "disputed"}).Once()

	result, err := f.svc.CreateRefund(ctx, 1, f.payment.PublicID, int64Ptr(2000), "")
	assert.ErrorIs(t, err, ErrProviderRejected)
	require.NotNil(t, result)
	assert.Equal(t, models.RefundStatusFailed, result.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Payment.Status)

	sum, err := f.store.Refunds().SumPending(ctx, f.payment.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestService_CreateRefundPendingReservesBalance(t *testing.T) {
	f := newFixture(t, models.PaymentStatusSucceeded, 0)
	ctx := context.Background()

	f.adapter.On("CreateRefund", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.RefundResponse{ProviderRefundID: "re_async", Status: models.RefundStatusPending}, nil).Once()

	result, err := f.svc.CreateRefund(ctx, 1, f.payment.PublicID, int64Ptr(8000), "")
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusPending, result.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Payment.Status)

	_, err = f.svc.CreateRefund(ctx, 1, f.payment.PublicID, int64Ptr(3000), "")
	assert.ErrorIs(t, err, models.ErrRefundExceedsBalance)
}

func TestApply_SettledPaymentCreatesClawback(t *testing.T) {
	f := newFixture(t, models.PaymentStatusSucceeded, 0)
	ctx := context.Background()

	payoutID := uint(77)
	_, err := f.store.Payments().AttachToPayout(ctx, []uint{f.payment.ID}, payoutID, time.Now().UTC())
	require.NoError(t, err)

	r := &models.PaymentRefund{PublicID: uuid.NewString(), PaymentID: f.payment.ID, Amount: 2500, Status: models.RefundStatusPending, ProviderRefundID: "re_9"}
	require.NoError(t, f.store.Refunds().Create(ctx, r))

	err = f.store.Transaction(ctx, func(tx repositories.Store) error {
		p, err := tx.Payments().LockByID(ctx, f.payment.ID)
		if err != nil {
			return err
		}
		_, err = Apply(ctx, tx, p, r, time.Now().UTC())
		return err
	})
	require.NoError(t, err)

	adjustments, err := f.store.Adjustments().ListUnapplied(ctx, 1, f.payment.ProcessorConfigID)
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, int64(2500), adjustments[0].Amount)
	assert.Equal(t, r.ID, adjustments[0].RefundID)
}
