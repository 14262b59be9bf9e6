package routes

import (
	"context"
	"time"

	"menupay/internal/models"
	"menupay/internal/services/gateway"
	"menupay/internal/services/payment"
	"menupay/internal/services/processor"
	"menupay/internal/services/refund"
	"menupay/internal/services/settlement"
	"menupay/internal/services/webhook"

	"github.com/stretchr/testify/mock"
)

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) CreatePayment(ctx context.Context, order models.Order, businessID uint, preferred *uint, opts payment.Options) (*payment.PaymentIntentResult, error) {
	args := m.Called(ctx, order, businessID, preferred, opts)
	r, _ := args.Get(0).(*payment.PaymentIntentResult)
	return r, args.Error(1)
}

func (m *MockPaymentService) PayOrder(ctx context.Context, orderID string, businessID uint, preferred *uint, opts payment.Options) (*payment.PaymentIntentResult, error) {
	args := m.Called(ctx, orderID, businessID, preferred, opts)
	r, _ := args.Get(0).(*payment.PaymentIntentResult)
	return r, args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, businessID uint, publicID string) (*models.Payment, error) {
	args := m.Called(ctx, businessID, publicID)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payment, int64, error) {
	args := m.Called(ctx, businessID, status, limit, offset)
	p, _ := args.Get(0).([]models.Payment)
	return p, args.Get(1).(int64), args.Error(2)
}

type MockRefundService struct{ mock.Mock }

func (m *MockRefundService) CreateRefund(ctx context.Context, businessID uint, paymentPublicID string, amount *int64, reason string) (*refund.RefundResult, error) {
	args := m.Called(ctx, businessID, paymentPublicID, amount, reason)
	r, _ := args.Get(0).(*refund.RefundResult)
	return r, args.Error(1)
}

func (m *MockRefundService) ListRefunds(ctx context.Context, businessID uint, paymentPublicID string) ([]models.PaymentRefund, error) {
	args := m.Called(ctx, businessID, paymentPublicID)
	r, _ := args.Get(0).([]models.PaymentRefund)
	return r, args.Error(1)
}

type MockWebhookService struct{ mock.Mock }

func (m *MockWebhookService) HandleWebhook(ctx context.Context, variant string, payload []byte, signature string, processorID *uint) (*webhook.Result, error) {
	args := m.Called(ctx, variant, payload, signature, processorID)
	r, _ := args.Get(0).(*webhook.Result)
	return r, args.Error(1)
}

type MockProcessorService struct{ mock.Mock }

func (m *MockProcessorService) SelectProcessor(ctx context.Context, businessID uint, preferredID *uint) (*models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID, preferredID)
	c, _ := args.Get(0).(*models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) Candidates(ctx context.Context, businessID uint, preferredID *uint) ([]models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID, preferredID)
	c, _ := args.Get(0).([]models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) Credentials(cfg *models.PaymentProcessorConfig) (gateway.Credentials, error) {
	args := m.Called(cfg)
	return args.Get(0).(gateway.Credentials), args.Error(1)
}

func (m *MockProcessorService) MarkFailed(ctx context.Context, id uint, cause error) {
	m.Called(ctx, id, cause)
}

func (m *MockProcessorService) MarkUsed(ctx context.Context, id uint) {
	m.Called(ctx, id)
}

func (m *MockProcessorService) Create(ctx context.Context, req processor.CreateRequest) (*models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) Get(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID, id)
	c, _ := args.Get(0).(*models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) List(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID)
	c, _ := args.Get(0).([]models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) Update(ctx context.Context, businessID, id uint, req processor.UpdateRequest) (*models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID, id, req)
	c, _ := args.Get(0).(*models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) Activate(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID, id)
	c, _ := args.Get(0).(*models.PaymentProcessorConfig)
	return c, args.Error(1)
}

func (m *MockProcessorService) Disconnect(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error) {
	args := m.Called(ctx, businessID, id)
	c, _ := args.Get(0).(*models.PaymentProcessorConfig)
	return c, args.Error(1)
}

type MockSettlementService struct{ mock.Mock }

func (m *MockSettlementService) RunSchedule(ctx context.Context, businessID, processorID uint) (*settlement.RunResult, error) {
	args := m.Called(ctx, businessID, processorID)
	r, _ := args.Get(0).(*settlement.RunResult)
	return r, args.Error(1)
}

func (m *MockSettlementService) DueSchedules(ctx context.Context) ([]settlement.Pair, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]settlement.Pair)
	return r, args.Error(1)
}

func (m *MockSettlementService) GetSchedule(ctx context.Context, businessID, processorID uint) (*models.PayoutSchedule, error) {
	args := m.Called(ctx, businessID, processorID)
	r, _ := args.Get(0).(*models.PayoutSchedule)
	return r, args.Error(1)
}

func (m *MockSettlementService) UpdateSchedule(ctx context.Context, businessID, processorID uint, upd settlement.ScheduleUpdate) (*models.PayoutSchedule, error) {
	args := m.Called(ctx, businessID, processorID, upd)
	r, _ := args.Get(0).(*models.PayoutSchedule)
	return r, args.Error(1)
}

func (m *MockSettlementService) ListPayouts(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payout, int64, error) {
	args := m.Called(ctx, businessID, status, limit, offset)
	r, _ := args.Get(0).([]models.Payout)
	return r, args.Get(1).(int64), args.Error(2)
}

func (m *MockSettlementService) GetPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, []models.Payment, error) {
	args := m.Called(ctx, businessID, payoutID)
	p, _ := args.Get(0).(*models.Payout)
	ps, _ := args.Get(1).([]models.Payment)
	return p, ps, args.Error(2)
}

func (m *MockSettlementService) RetryPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, error) {
	args := m.Called(ctx, businessID, payoutID)
	r, _ := args.Get(0).(*models.Payout)
	return r, args.Error(1)
}

func (m *MockSettlementService) UpdatePayoutStatus(ctx context.Context, payoutID uint, upd settlement.StatusUpdate) (*models.Payout, error) {
	args := m.Called(ctx, payoutID, upd)
	r, _ := args.Get(0).(*models.Payout)
	return r, args.Error(1)
}

func (m *MockSettlementService) Report(ctx context.Context, businessID uint, from, to time.Time) (*settlement.Report, error) {
	args := m.Called(ctx, businessID, from, to)
	r, _ := args.Get(0).(*settlement.Report)
	return r, args.Error(1)
}
