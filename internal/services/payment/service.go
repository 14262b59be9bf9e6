package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"menupay/internal/events"
	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/repositories"
	"menupay/internal/services/gateway"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// idempotencyNamespace scopes the deterministic provider idempotency keys.
var idempotencyNamespace = uuid.MustParse("5b0f8f5e-6a43-4c55-9d0c-3f8f4a1d6e21")

const defaultAdapterTimeout = 15 * time.Second

type service struct {
	store      repositories.Store
	processors ProcessorRegistry
	adapters   AdapterSource
	publisher  events.Publisher
	config     Config
	metrics    MetricsCollector
	now        func() time.Time
}

// NewService creates the payment orchestrator.
func NewService(
	store repositories.Store,
	processors ProcessorRegistry,
	adapters AdapterSource,
	publisher events.Publisher,
	config Config,
	metrics MetricsCollector,
) Service {
	if store == nil {
		panic("store is required")
	}
	if processors == nil {
		panic("processor registry is required")
	}
	if adapters == nil {
		panic("adapter source is required")
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.AdapterTimeout <= 0 {
		config.AdapterTimeout = defaultAdapterTimeout
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		store:      store,
		processors: processors,
		adapters:   adapters,
		publisher:  publisher,
		config:     config,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *service) PayOrder(ctx context.Context, orderID string, businessID uint, preferredProcessorID *uint, opts Options) (*PaymentIntentResult, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.CreatePayment(ctx, *order, businessID, preferredProcessorID, opts)
}

func (s *service) CreatePayment(ctx context.Context, order models.Order, businessID uint, preferredProcessorID *uint, opts Options) (*PaymentIntentResult, error) {
	if order.BusinessID != businessID {
		return nil, models.ErrOrderNotFound
	}
	if order.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if order.Currency == "" {
		return nil, ErrInvalidCurrency
	}

	paid, err := s.store.Payments().HasCaptured(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, models.ErrOrderAlreadyPaid
	}

	candidates, err := s.processors.Candidates(ctx, businessID, preferredProcessorID)
	if err != nil {
		return nil, err
	}

	// One attempt per candidate, in order; the loop ends when the list does.
	attempts := make([]Attempt, 0, len(candidates))
	for i := range candidates {
		cfg := &candidates[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			s.metrics.RecordFallback(string(candidates[i-1].Variant))
		}

		resp, idemKey, attempt, err := s.attempt(ctx, order, cfg, opts, i+1)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Only a provider failure counts against the processor. Store,
			// registry and credential errors are ours and go to the caller.
			if !isAdapterFailure(err) {
				return nil, err
			}
			attempts = append(attempts, attempt)
			s.processors.MarkFailed(ctx, cfg.ID, err)
			continue
		}
		attempts = append(attempts, attempt)

		payment, err := s.persist(ctx, order, cfg, resp, idemKey, opts)
		if err != nil {
			// The provider object exists; a retry derives the same key and
			// lands on it again.
			return nil, err
		}
		s.processors.MarkUsed(ctx, cfg.ID)

		return &PaymentIntentResult{
			Payment:        payment,
			ClientSecret:   resp.ClientSecret,
			PaymentURL:     resp.PaymentURL,
			AdditionalData: resp.AdditionalData,
			Attempts:       attempts,
		}, nil
	}

	s.metrics.RecordExhausted()
	logger.SW("order_id", order.ID, "business_id", businessID, "attempts", len(attempts)).
		Error("all payment processors failed")
	return nil, fmt.Errorf("%w after %d attempts", models.ErrAllProcessorsExhausted, len(attempts))
}

// attempt makes one adapter call against cfg. The returned error is already
// logged with provider context.
func (s *service) attempt(ctx context.Context, order models.Order, cfg *models.PaymentProcessorConfig, opts Options, n int) (*gateway.PaymentResponse, string, Attempt, error) {
	record := Attempt{ProcessorID: cfg.ID, Variant: cfg.Variant, Outcome: AttemptFailed}
	log := logger.SW(
		"order_id", order.ID,
		"business_id", order.BusinessID,
		"processor_id", cfg.ID,
		"variant", cfg.Variant,
		"attempt", n,
	)

	adapter, err := s.adapters.Get(cfg.Variant)
	if err != nil {
		log.Errorw("no adapter for processor", "error", err)
		return nil, "", record, err
	}
	creds, err := s.processors.Credentials(cfg)
	if err != nil {
		log.Errorw("processor credentials unusable", "error", err)
		return nil, "", record, err
	}

	failed, err := s.store.Payments().CountFailed(ctx, order.ID, cfg.ID)
	if err != nil {
		log.Errorw("failed to count prior attempts", "error", err)
		return nil, "", record, fmt.Errorf("failed to count prior attempts: %w", err)
	}
	idemKey := IdempotencyKey(order.ID, cfg.ID, failed)

	callCtx, cancel := context.WithTimeout(ctx, s.config.AdapterTimeout)
	defer cancel()

	started := s.now()
	resp, err := adapter.CreatePayment(callCtx, creds, gateway.PaymentRequest{
		OrderID:        order.ID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Description:    order.Description,
		IdempotencyKey: idemKey,
		ReturnURL:      opts.ReturnURL,
		CustomerEmail:  opts.CustomerEmail,
		Metadata:       opts.Metadata,
	})
	latency := s.now().Sub(started)
	record.LatencyMs = latency.Milliseconds()

	if err == nil && (resp == nil || resp.ProviderReference == "") {
		err = &gateway.Error{Variant: cfg.Variant, Kind: gateway.KindProvider, Message: "empty provider reference"}
	}
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			record.ErrorKind = string(gerr.Kind)
			record.ErrorCode = gerr.Code
		} else if errors.Is(err, context.DeadlineExceeded) {
			record.ErrorKind = string(gateway.KindTimeout)
		}
		s.metrics.RecordAttempt(string(cfg.Variant), AttemptFailed, latency)
		log.Warnw("payment adapter failed", "error", err, "error_kind", record.ErrorKind, "error_code", record.ErrorCode, "latency_ms", record.LatencyMs)
		return nil, idemKey, record, err
	}

	record.Outcome = AttemptSucceeded
	s.metrics.RecordAttempt(string(cfg.Variant), AttemptSucceeded, latency)
	log.Infow("payment adapter succeeded", "provider_reference", resp.ProviderReference, "latency_ms", record.LatencyMs)
	return resp, idemKey, record, nil
}

// isAdapterFailure reports whether err came back from a provider call, as
// opposed to from local infrastructure around it.
func isAdapterFailure(err error) bool {
	var gerr *gateway.Error
	return errors.As(err, &gerr) || errors.Is(err, context.DeadlineExceeded)
}

func (s *service) persist(ctx context.Context, order models.Order, cfg *models.PaymentProcessorConfig, resp *gateway.PaymentResponse, idemKey string, opts Options) (*models.Payment, error) {
	status := models.PaymentStatusProcessing
	if resp.RequiresRedirect {
		status = models.PaymentStatusPending
	}

	payment := &models.Payment{
		PublicID:          uuid.NewString(),
		OrderID:           order.ID,
		BusinessID:        order.BusinessID,
		ProcessorConfigID: cfg.ID,
		Variant:           cfg.Variant,
		ProviderReference: resp.ProviderReference,
		Amount:            order.Amount,
		Currency:          order.Currency,
		Description:       order.Description,
		Status:            status,
		IdempotencyKey:    idemKey,
	}
	if len(opts.Metadata) > 0 {
		raw, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payment metadata: %w", err)
		}
		payment.Metadata = datatypes.JSON(raw)
	}

	created, err := s.store.Payments().CreateIfAbsent(ctx, payment)
	if err != nil {
		return nil, err
	}
	if created {
		events.Emit(ctx, s.publisher, events.New(events.PaymentCreated, payment.BusinessID, payment))
	}
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, businessID uint, publicID string) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if payment.BusinessID != businessID {
		return nil, models.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *service) ListPayments(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payment, int64, error) {
	return s.store.Payments().ListByBusiness(ctx, businessID, status, limit, offset)
}

// IdempotencyKey derives the provider idempotency key for the given order,
// processor and attempt. Retrying the same attempt yields the same key.
func IdempotencyKey(orderID string, processorID uint, attempt int64) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("%s:%d:%d", orderID, processorID, attempt))).String()
}
