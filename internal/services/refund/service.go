package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menupay/internal/events"
	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/repositories"
	"menupay/internal/services/gateway"

	"github.com/google/uuid"
)

var refundNamespace = uuid.MustParse("9d3c8a61-0f7e-4f0b-8a53-2b7c1e64d0aa")

type service struct {
	store     repositories.Store
	creds     CredentialSource
	adapters  AdapterSource
	publisher events.Publisher
	config    Config
	now       func() time.Time
}

// NewService creates the refund orchestrator.
func NewService(store repositories.Store, creds CredentialSource, adapters AdapterSource, publisher events.Publisher, config Config) Service {
	if store == nil {
		panic("store is required")
	}
	if creds == nil {
		panic("credential source is required")
	}
	if adapters == nil {
		panic("adapter source is required")
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.AdapterTimeout <= 0 {
		config.AdapterTimeout = 15 * time.Second
	}
	return &service{store: store, creds: creds, adapters: adapters, publisher: publisher, config: config, now: time.Now}
}

// CreateRefund runs in three steps: reserve the amount as a pending refund,
// call the processor outside any transaction, then book the answer.
func (s *service) CreateRefund(ctx context.Context, businessID uint, paymentPublicID string, amount *int64, reason string) (*RefundResult, error) {
	if amount != nil && *amount <= 0 {
		return nil, ErrInvalidAmount
	}

	found, err := s.store.Payments().GetByPublicID(ctx, paymentPublicID)
	if err != nil {
		return nil, err
	}
	if found.BusinessID != businessID {
		return nil, models.ErrPaymentNotFound
	}

	var (
		payment *models.Payment
		pending *models.PaymentRefund
	)
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		payment, err = tx.Payments().LockByID(ctx, found.ID)
		if err != nil {
			return err
		}
		pending, err = s.reserve(ctx, tx, payment, amount, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	log := logger.SW(
		"payment_id", payment.PublicID,
		"refund_id", pending.PublicID,
		"processor_id", payment.ProcessorConfigID,
		"variant", payment.Variant,
		"amount", pending.Amount,
	)

	resp, callErr := s.callProcessor(ctx, payment, pending)
	if callErr == nil && (resp == nil || resp.Status == models.RefundStatusFailed) {
		callErr = errors.New("processor reported failure")
	}
	if callErr != nil {
		log.Warnw("refund adapter failed", "error", callErr)
	}

	// The processor has answered; the outcome is booked even if the caller
	// went away meanwhile.
	bookCtx := context.WithoutCancel(ctx)
	var status string
	err = s.store.Transaction(bookCtx, func(tx repositories.Store) error {
		var err error
		payment, err = tx.Payments().LockByID(bookCtx, payment.ID)
		if err != nil {
			return err
		}
		status, err = s.book(bookCtx, tx, payment, pending, resp, callErr)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &RefundResult{RefundID: pending.PublicID, Amount: pending.Amount, Status: status, Payment: payment}
	switch status {
	case models.RefundStatusFailed:
		return result, fmt.Errorf("%w: %v", ErrProviderRejected, callErr)
	case models.RefundStatusSucceeded:
		events.Emit(ctx, s.publisher, events.New(events.PaymentRefunded, payment.BusinessID, result))
	}
	log.Infow("refund recorded", "status", status)
	return result, nil
}

func (s *service) reserve(ctx context.Context, tx repositories.Store, payment *models.Payment, amount *int64, reason string) (*models.PaymentRefund, error) {
	if payment.Status != models.PaymentStatusSucceeded && payment.Status != models.PaymentStatusPartiallyRefunded {
		return nil, fmt.Errorf("%w: payment is %s", models.ErrInvalidPaymentStatus, payment.Status)
	}

	reserved, err := tx.Refunds().SumPending(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	remaining := payment.RefundableBalance() - reserved

	requested := remaining
	if amount != nil {
		requested = *amount
	}
	if requested <= 0 || requested > remaining {
		return nil, fmt.Errorf("%w: requested %d, refundable %d", models.ErrRefundExceedsBalance, requested, remaining)
	}

	seq, err := tx.Refunds().CountByPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	r := &models.PaymentRefund{
		PublicID:       uuid.NewString(),
		PaymentID:      payment.ID,
		Amount:         requested,
		Reason:         reason,
		Status:         models.RefundStatusPending,
		IdempotencyKey: uuid.NewSHA1(refundNamespace, []byte(fmt.Sprintf("%d:%d", payment.ID, seq))).String(),
	}
	if err := tx.Refunds().Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// callProcessor always targets the processor that captured the payment.
func (s *service) callProcessor(ctx context.Context, payment *models.Payment, r *models.PaymentRefund) (*gateway.RefundResponse, error) {
	cfg, err := s.store.Processors().GetByID(ctx, payment.ProcessorConfigID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(payment.Variant)
	if err != nil {
		return nil, err
	}
	creds, err := s.creds.Credentials(cfg)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.AdapterTimeout)
	defer cancel()
	return adapter.CreateRefund(callCtx, creds, gateway.RefundRequest{
		ProviderReference: payment.ProviderReference,
		Amount:            r.Amount,
		Currency:          payment.Currency,
		Reason:            r.Reason,
		IdempotencyKey:    r.IdempotencyKey,
	})
}

func (s *service) book(ctx context.Context, tx repositories.Store, payment *models.Payment, r *models.PaymentRefund, resp *gateway.RefundResponse, callErr error) (string, error) {
	now := s.now().UTC()
	if callErr != nil {
		err := tx.Refunds().Update(ctx, r.ID, map[string]interface{}{
			"status":         models.RefundStatusFailed,
			"failure_reason": callErr.Error(),
			"updated_at":     now,
		})
		r.Status = models.RefundStatusFailed
		return models.RefundStatusFailed, err
	}

	r.ProviderRefundID = resp.ProviderRefundID
	if resp.Status == models.RefundStatusPending {
		err := tx.Refunds().Update(ctx, r.ID, map[string]interface{}{
			"provider_refund_id": resp.ProviderRefundID,
			"updated_at":         now,
		})
		return models.RefundStatusPending, err
	}

	if _, err := Apply(ctx, tx, payment, r, now); err != nil {
		return "", err
	}
	return models.RefundStatusSucceeded, nil
}

func (s *service) ListRefunds(ctx context.Context, businessID uint, paymentPublicID string) ([]models.PaymentRefund, error) {
	payment, err := s.store.Payments().GetByPublicID(ctx, paymentPublicID)
	if err != nil {
		return nil, err
	}
	if payment.BusinessID != businessID {
		return nil, models.ErrPaymentNotFound
	}
	return s.store.Refunds().ListByPayment(ctx, payment.ID)
}
