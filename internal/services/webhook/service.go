package webhook

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
	"menupay/internal/services/refund"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type service struct {
	store     repositories.Store
	creds     CredentialSource
	adapters  AdapterSource
	publisher events.Publisher
	config    Config
	now       func() time.Time
}

// NewService creates the webhook ingestion service.
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
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &service{store: store, creds: creds, adapters: adapters, publisher: publisher, config: config, now: time.Now}
}

func (s *service) HandleWebhook(ctx context.Context, variant string, payload []byte, signature string, processorID *uint) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	v := models.ProcessorVariant(variant)
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %q", gateway.ErrUnsupportedVariant, variant)
	}
	adapter, err := s.adapters.Get(v)
	if err != nil {
		return nil, err
	}

	configs, evt, err := s.verify(ctx, adapter, v, payload, signature, processorID)
	if err != nil {
		logger.SW("variant", v, "error", err).Warn("webhook rejected")
		return nil, err
	}

	log := logger.SW("variant", v, "event_id", evt.ID, "event_type", evt.RawType)
	result := &Result{Processed: true, EventType: string(evt.Type), EventID: evt.ID}

	var (
		payment *models.Payment
		emit    string
	)
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		informational := evt.Type == gateway.EventUnknown || evt.PaymentReference == ""

		cfg := &configs[0]
		var found *models.Payment
		if !informational {
			var err error
			if cfg, found, err = findPayment(ctx, tx, configs, evt.PaymentReference); err != nil {
				return err
			}
		}

		record := &models.WebhookEvent{
			Variant:           v,
			ProviderEventID:   evt.ID,
			ProcessorConfigID: cfg.ID,
			EventType:         evt.RawType,
			Payload:           datatypes.JSON(payload),
			ReceivedAt:        s.now().UTC(),
		}
		inserted, err := tx.WebhookEvents().Record(ctx, record)
		if err != nil {
			return err
		}
		if !inserted {
			result.Processed = false
			return nil
		}

		if informational {
			result.Outcome = models.EventOutcomeIgnored
			return tx.WebhookEvents().SetOutcome(ctx, record.ID, result.Outcome, nil)
		}

		payment, err = tx.Payments().LockByID(ctx, found.ID)
		if err != nil {
			return err
		}

		result.Outcome, emit, err = s.apply(ctx, tx, payment, evt)
		if err != nil {
			return err
		}
		result.PaymentID = payment.PublicID
		return tx.WebhookEvents().SetOutcome(ctx, record.ID, result.Outcome, &payment.ID)
	})
	if err != nil {
		log.Warnw("webhook not applied", "error", err)
		return nil, err
	}

	if !result.Processed {
		log.Info("duplicate webhook delivery ignored")
		return result, nil
	}
	log.Infow("webhook processed", "outcome", result.Outcome, "payment_id", result.PaymentID)
	if emit != "" {
		events.Emit(ctx, s.publisher, events.New(emit, payment.BusinessID, payment))
	}
	return result, nil
}

// verify returns every config whose secret validates the signature, in
// registry order, together with the parsed event. Configs may share a secret,
// so the payment reference decides which of them owns the event.
func (s *service) verify(ctx context.Context, adapter gateway.Adapter, v models.ProcessorVariant, payload []byte, signature string, processorID *uint) ([]models.PaymentProcessorConfig, *gateway.Event, error) {
	var configs []models.PaymentProcessorConfig
	if processorID != nil {
		cfg, err := s.store.Processors().GetByID(ctx, *processorID)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Variant != v || cfg.Status == models.ProcessorStatusDisconnected {
			return nil, nil, models.ErrProcessorNotFound
		}
		configs = append(configs, *cfg)
	} else {
		var err error
		if configs, err = s.store.Processors().ListByVariant(ctx, v); err != nil {
			return nil, nil, err
		}
	}

	var (
		accepted []models.PaymentProcessorConfig
		event    *gateway.Event
	)
	for i := range configs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		creds, err := s.creds.Credentials(&configs[i])
		if err != nil {
			continue
		}
		evt, err := adapter.VerifyWebhook(creds, payload, signature)
		if err == nil {
			if event == nil {
				event = evt
			}
			accepted = append(accepted, configs[i])
			continue
		}
		if errors.Is(err, gateway.ErrMalformedEvent) {
			return nil, nil, err
		}
	}
	if len(accepted) == 0 {
		return nil, nil, fmt.Errorf("%w: no %s processor accepted the signature", models.ErrInvalidSignature, v)
	}
	return accepted, event, nil
}

// findPayment resolves the provider reference under each accepted config.
func findPayment(ctx context.Context, tx repositories.Store, configs []models.PaymentProcessorConfig, reference string) (*models.PaymentProcessorConfig, *models.Payment, error) {
	for i := range configs {
		p, err := tx.Payments().GetByReference(ctx, configs[i].ID, reference)
		if err == nil {
			return &configs[i], p, nil
		}
		if !errors.Is(err, models.ErrPaymentNotFound) {
			return nil, nil, err
		}
	}
	return nil, nil, models.ErrPaymentNotFound
}

// apply performs the transition an event asks for. Disallowed transitions
// are recorded as ignored rather than rejected.
func (s *service) apply(ctx context.Context, tx repositories.Store, payment *models.Payment, evt *gateway.Event) (outcome, emit string, err error) {
	now := s.now().UTC()

	switch evt.Type {
	case gateway.EventPaymentSucceeded:
		if !models.CanTransition(payment.Status, models.PaymentStatusSucceeded) {
			return models.EventOutcomeIgnored, "", nil
		}
		captured, err := tx.Payments().HasCaptured(ctx, payment.OrderID)
		if err != nil {
			return "", "", err
		}
		if captured {
			logger.SW("payment_id", payment.PublicID, "order_id", payment.OrderID, "event_id", evt.ID).
				Error("second capture reported for an already paid order, refund required")
			return models.EventOutcomeConflict, "", nil
		}
		orderID := payment.OrderID
		ok, err := tx.Payments().Transition(ctx, payment.ID, models.PaymentStatusSucceeded, map[string]interface{}{
			"captured_order_id":   &orderID,
			"captured_at":         now,
			"settlement_eligible": true,
			"last_event_id":       evt.ID,
			"failure_reason":      "",
		})
		if err != nil || !ok {
			return models.EventOutcomeIgnored, "", err
		}
		payment.Status = models.PaymentStatusSucceeded
		payment.CapturedOrderID = &orderID
		payment.CapturedAt = &now
		payment.SettlementEligible = true
		payment.LastEventID = evt.ID
		return models.EventOutcomeApplied, events.PaymentSucceeded, nil

	case gateway.EventPaymentFailed:
		if !models.CanTransition(payment.Status, models.PaymentStatusFailed) {
			return models.EventOutcomeIgnored, "", nil
		}
		ok, err := tx.Payments().Transition(ctx, payment.ID, models.PaymentStatusFailed, map[string]interface{}{
			"failure_reason": evt.FailureReason,
			"last_event_id":  evt.ID,
		})
		if err != nil || !ok {
			return models.EventOutcomeIgnored, "", err
		}
		payment.Status = models.PaymentStatusFailed
		payment.FailureReason = evt.FailureReason
		payment.LastEventID = evt.ID
		return models.EventOutcomeApplied, events.PaymentFailed, nil

	case gateway.EventPaymentAttemptFailed:
		// The customer can still retry, so only the reason is kept.
		if !models.CanTransition(payment.Status, models.PaymentStatusFailed) {
			return models.EventOutcomeIgnored, "", nil
		}
		if err := tx.Payments().Update(ctx, payment.ID, map[string]interface{}{
			"failure_reason": evt.FailureReason,
			"last_event_id":  evt.ID,
		}); err != nil {
			return "", "", err
		}
		payment.FailureReason = evt.FailureReason
		payment.LastEventID = evt.ID
		return models.EventOutcomeApplied, "", nil

	case gateway.EventRefundSucceeded, gateway.EventRefundFailed:
		return s.applyRefund(ctx, tx, payment, evt, now)
	}
	return models.EventOutcomeIgnored, "", nil
}

func (s *service) applyRefund(ctx context.Context, tx repositories.Store, payment *models.Payment, evt *gateway.Event, now time.Time) (string, string, error) {
	if evt.RefundReference == "" {
		return models.EventOutcomeIgnored, "", nil
	}

	pending, err := tx.Refunds().LockPendingByProviderID(ctx, payment.ID, evt.RefundReference)
	switch {
	case err == nil:
		if evt.Type == gateway.EventRefundFailed {
			err := tx.Refunds().Update(ctx, pending.ID, map[string]interface{}{
				"status":         models.RefundStatusFailed,
				"failure_reason": evt.FailureReason,
				"updated_at":     now,
			})
			return models.EventOutcomeApplied, "", err
		}
		if _, err := refund.Apply(ctx, tx, payment, pending, now); err != nil {
			return "", "", err
		}
		return models.EventOutcomeApplied, events.PaymentRefunded, nil
	case !errors.Is(err, models.ErrRefundNotFound):
		return "", "", err
	}

	_, err = tx.Refunds().FindByProviderID(ctx, payment.ID, evt.RefundReference)
	if err == nil {
		return models.EventOutcomeIgnored, "", nil
	}
	if !errors.Is(err, models.ErrRefundNotFound) {
		return "", "", err
	}

	// A refund we started may still be waiting for its provider id; let the
	// provider redeliver once it is booked.
	refunds, err := tx.Refunds().ListByPayment(ctx, payment.ID)
	if err != nil {
		return "", "", err
	}
	for _, r := range refunds {
		if r.Status == models.RefundStatusPending && r.ProviderRefundID == "" {
			return "", "", fmt.Errorf("%w: refund %s awaiting provider id", models.ErrRefundNotFound, r.PublicID)
		}
	}

	// Refund issued from the provider's dashboard.
	if evt.Type == gateway.EventRefundFailed || !models.CanTransition(payment.Status, models.PaymentStatusPartiallyRefunded) {
		return models.EventOutcomeIgnored, "", nil
	}
	amount := evt.Amount
	if amount <= 0 || amount > payment.RefundableBalance() {
		amount = payment.RefundableBalance()
	}
	if amount <= 0 {
		return models.EventOutcomeIgnored, "", nil
	}
	external := &models.PaymentRefund{
		PublicID:         uuid.NewString(),
		PaymentID:        payment.ID,
		Amount:           amount,
		Reason:           "issued at processor",
		Status:           models.RefundStatusPending,
		ProviderRefundID: evt.RefundReference,
	}
	if err := tx.Refunds().Create(ctx, external); err != nil {
		return "", "", err
	}
	if _, err := refund.Apply(ctx, tx, payment, external, now); err != nil {
		return "", "", err
	}
	return models.EventOutcomeApplied, events.PaymentRefunded, nil
}
