package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/repositories"
	"menupay/internal/services/gateway"
)

type service struct {
	repo   repositories.ProcessorRepository
	sealer CredentialSealer
	now    func() time.Time
}

// NewService creates the processor registry.
func NewService(repo repositories.ProcessorRepository, sealer CredentialSealer) Service {
	if repo == nil {
		panic("repo is required")
	}
	if sealer == nil {
		panic("sealer is required")
	}
	return &service{repo: repo, sealer: sealer, now: time.Now}
}

func (s *service) SelectProcessor(ctx context.Context, businessID uint, preferredID *uint) (*models.PaymentProcessorConfig, error) {
	candidates, err := s.Candidates(ctx, businessID, preferredID)
	if err != nil {
		return nil, err
	}
	return &candidates[0], nil
}

func (s *service) Candidates(ctx context.Context, businessID uint, preferredID *uint) ([]models.PaymentProcessorConfig, error) {
	active, err := s.repo.ListActive(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, models.ErrNoActiveProcessor
	}
	if preferredID == nil {
		return active, nil
	}

	for i := range active {
		if active[i].ID != *preferredID {
			continue
		}
		ordered := make([]models.PaymentProcessorConfig, 0, len(active))
		ordered = append(ordered, active[i])
		ordered = append(ordered, active[:i]...)
		return append(ordered, active[i+1:]...), nil
	}

	logger.SW("business_id", businessID, "preferred_processor_id", *preferredID).
		Info("preferred processor unavailable, using priority order")
	return active, nil
}

func (s *service) Credentials(cfg *models.PaymentProcessorConfig) (gateway.Credentials, error) {
	creds, err := s.sealer.Open(cfg.EncryptedCredentials)
	if err != nil {
		return gateway.Credentials{}, fmt.Errorf("processor %d: %w", cfg.ID, err)
	}
	return creds, nil
}

// MarkFailed records an adapter failure. Bookkeeping errors are logged only;
// they must not mask the failure being handled.
func (s *service) MarkFailed(ctx context.Context, id uint, cause error) {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	if err := s.repo.MarkFailed(context.WithoutCancel(ctx), id, reason); err != nil {
		logger.SW("processor_id", id, "error", err).Error("failed to mark processor failed")
	}
}

func (s *service) MarkUsed(ctx context.Context, id uint) {
	if err := s.repo.MarkUsed(context.WithoutCancel(ctx), id, s.now().UTC()); err != nil {
		logger.SW("processor_id", id, "error", err).Warn("failed to stamp processor usage")
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*models.PaymentProcessorConfig, error) {
	variant := models.ProcessorVariant(req.Variant)
	if !variant.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVariant, req.Variant)
	}
	if err := checkCredentials(variant, req.Credentials); err != nil {
		return nil, err
	}
	if req.FeePercent.IsNegative() || req.FixedFee < 0 {
		return nil, ErrInvalidFee
	}
	schedule := req.SettlementSchedule
	if schedule == "" {
		schedule = models.FrequencyWeekly
	}
	if !validFrequency(schedule) {
		return nil, ErrInvalidSchedule
	}

	sealed, err := s.sealer.Seal(req.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials: %w", err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = string(variant)
	}

	cfg := &models.PaymentProcessorConfig{
		BusinessID:           req.BusinessID,
		Variant:              variant,
		DisplayName:          displayName,
		Status:               models.ProcessorStatusPendingVerification,
		Priority:             req.Priority,
		FeePercent:           req.FeePercent,
		FixedFee:             req.FixedFee,
		SettlementSchedule:   schedule,
		EncryptedCredentials: sealed,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, err
	}

	logger.SW("business_id", cfg.BusinessID, "processor_id", cfg.ID, "variant", cfg.Variant).Info("processor config created")
	return cfg, nil
}

func (s *service) Get(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error) {
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.BusinessID != businessID {
		return nil, models.ErrProcessorNotFound
	}
	return cfg, nil
}

func (s *service) List(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error) {
	return s.repo.ListByBusiness(ctx, businessID)
}

func (s *service) Update(ctx context.Context, businessID, id uint, req UpdateRequest) (*models.PaymentProcessorConfig, error) {
	cfg, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if cfg.Status == models.ProcessorStatusDisconnected {
		return nil, ErrProcessorDisconnected
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.FeePercent != nil {
		if req.FeePercent.IsNegative() {
			return nil, ErrInvalidFee
		}
		updates["fee_percent"] = *req.FeePercent
	}
	if req.FixedFee != nil {
		if *req.FixedFee < 0 {
			return nil, ErrInvalidFee
		}
		updates["fixed_fee"] = *req.FixedFee
	}
	if req.SettlementSchedule != nil {
		if !validFrequency(*req.SettlementSchedule) {
			return nil, ErrInvalidSchedule
		}
		updates["settlement_schedule"] = *req.SettlementSchedule
	}
	if req.Credentials != nil {
		if err := checkCredentials(cfg.Variant, *req.Credentials); err != nil {
			return nil, err
		}
		sealed, err := s.sealer.Seal(*req.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to seal credentials: %w", err)
		}
		updates["encrypted_credentials"] = sealed
		updates["status"] = models.ProcessorStatusPendingVerification
		updates["last_error"] = ""
	}
	if len(updates) == 0 {
		return cfg, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Activate verifies that the stored credentials open and are complete, then
// makes the config selectable. Failed configs are reactivated the same way.
func (s *service) Activate(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error) {
	cfg, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	switch cfg.Status {
	case models.ProcessorStatusActive:
		return cfg, nil
	case models.ProcessorStatusDisconnected:
		return nil, ErrProcessorDisconnected
	}

	creds, err := s.Credentials(cfg)
	if err != nil {
		return nil, err
	}
	if err := checkCredentials(cfg.Variant, creds); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, map[string]interface{}{
		"status":     models.ProcessorStatusActive,
		"last_error": "",
	}); err != nil {
		return nil, err
	}
	logger.SW("business_id", businessID, "processor_id", id).Info("processor activated")
	return s.repo.GetByID(ctx, id)
}

func (s *service) Disconnect(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error) {
	cfg, err := s.Get(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if cfg.Status == models.ProcessorStatusDisconnected {
		return cfg, nil
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{"status": models.ProcessorStatusDisconnected}); err != nil {
		return nil, err
	}
	logger.SW("business_id", businessID, "processor_id", id).Info("processor disconnected")
	return s.repo.GetByID(ctx, id)
}

func checkCredentials(variant models.ProcessorVariant, c gateway.Credentials) error {
	var missing []string
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	switch variant {
	case models.VariantCard:
		if c.WebhookSecret == "" {
			missing = append(missing, "webhook_secret")
		}
	case models.VariantUPI:
		if c.PublicKey == "" {
			missing = append(missing, "public_key")
		}
		if c.WebhookSecret == "" {
			missing = append(missing, "webhook_secret")
		}
	case models.VariantWallet:
		if c.MerchantID == "" {
			missing = append(missing, "merchant_id")
		}
	default:
		return ErrInvalidVariant
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrMissingCredentials, missing)
	}
	return nil
}

func validFrequency(f string) bool {
	switch f {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		return true
	}
	return false
}

// IsClientError reports whether err was caused by the request rather than
// the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidVariant) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidFee) ||
		errors.Is(err, ErrInvalidSchedule)
}
