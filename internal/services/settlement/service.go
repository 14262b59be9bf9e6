package settlement

import (
	"context"
	"fmt"
	"time"

	"menupay/internal/events"
	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/repositories"

	"github.com/google/uuid"
)

const (
	defaultLockTTL   = 2 * time.Minute
	defaultPageLimit = 20
)

// payoutSources lists, per target status, the statuses a payout may leave
// to reach it through the disbursement callback.
var payoutSources = map[string][]string{
	models.PayoutStatusProcessing: {models.PayoutStatusPending},
	models.PayoutStatusPaid:       {models.PayoutStatusProcessing},
	models.PayoutStatusFailed:     {models.PayoutStatusProcessing},
}

type service struct {
	store     repositories.Store
	locker    Locker
	publisher events.Publisher
	fees      *FeeCalculator
	config    Config
	now       func() time.Time
}

// NewService creates the settlement scheduler.
func NewService(store repositories.Store, locker Locker, publisher events.Publisher, config Config) Service {
	if store == nil {
		panic("store is required")
	}
	if locker == nil {
		panic("locker is required")
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaultLockTTL
	}
	if !validFrequency(config.DefaultFrequency) {
		config.DefaultFrequency = models.FrequencyWeekly
	}
	return &service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		fees:      NewFeeCalculator(config.PlatformFeePercent, config.PlatformFixedFee),
		config:    config,
		now:       time.Now,
	}
}

func lockKey(businessID, processorID uint) string {
	return fmt.Sprintf("settlement:lock:%d:%d", businessID, processorID)
}

func (s *service) RunSchedule(ctx context.Context, businessID, processorID uint) (*RunResult, error) {
	cfg, err := s.ownedProcessor(ctx, businessID, processorID)
	if err != nil {
		return nil, err
	}

	lock, err := s.locker.TryAcquire(ctx, lockKey(businessID, processorID), s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire settlement lock: %w", err)
	}
	if lock == nil {
		return nil, models.ErrScheduleLocked
	}

	log := logger.SW("business_id", businessID, "processor_id", processorID)
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("failed to release settlement lock", "error", err)
		}
	}()

	now := s.now().UTC()
	var result *RunResult
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		result, err = s.aggregate(ctx, tx, cfg, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Payout == nil {
		log.Infow("no payout this cycle", "reason", result.SkipReason)
		return result, nil
	}

	log.Infow("payout created",
		"payout_id", result.Payout.PublicID,
		"payments", result.Payout.PaymentCount,
		"gross", result.Payout.GrossAmount,
		"net", result.Payout.NetAmount,
		"forced", result.Payout.Forced,
	)
	events.Emit(ctx, s.publisher, events.New(events.PayoutCreated, businessID, map[string]interface{}{
		"payout": result.Payout,
		"notify": result.Schedule.NotifyOnPayout,
	}))
	return result, nil
}

func (s *service) aggregate(ctx context.Context, tx repositories.Store, cfg *models.PaymentProcessorConfig, now time.Time) (*RunResult, error) {
	sched, err := tx.Schedules().GetOrCreateLocked(ctx, s.defaults(cfg))
	if err != nil {
		return nil, err
	}

	skip := func(reason string) (*RunResult, error) {
		if err := tx.Schedules().MarkRun(ctx, sched.ID, now, false); err != nil {
			return nil, err
		}
		return &RunResult{Schedule: sched, SkipReason: reason}, nil
	}

	if sched.OnHold {
		return skip(SkipOnHold)
	}

	settleable, err := tx.Payments().ListSettleable(ctx, cfg.BusinessID, cfg.ID, now)
	if err != nil {
		return nil, err
	}
	if len(settleable) == 0 {
		return skip(SkipNothingToSettle)
	}

	// One payout per currency; the oldest payment decides which one goes
	// first and the rest wait for the next run.
	currency := settleable[0].Currency
	batch := settleable[:0]
	for _, p := range settleable {
		if p.Currency == currency {
			batch = append(batch, p)
		}
	}

	oldest := *batch[0].CapturedAt
	forced := now.Sub(oldest) >= time.Duration(sched.MaxHoldDays)*24*time.Hour

	payout := &models.Payout{
		PublicID:          uuid.NewString(),
		BusinessID:        cfg.BusinessID,
		ProcessorConfigID: cfg.ID,
		Currency:          currency,
		PeriodStart:       oldest,
		PeriodEnd:         now,
		PaymentCount:      len(batch),
		Forced:            forced,
		Status:            models.PayoutStatusPending,
	}
	ids := make([]uint, 0, len(batch))
	for _, p := range batch {
		gross := p.Amount - p.RefundedAmount
		payout.GrossAmount += gross
		payout.ProcessorFeeTotal += s.fees.ProcessorFee(cfg, p.Amount)
		payout.PlatformFeeTotal += s.fees.PlatformFee(gross)
		ids = append(ids, p.ID)
	}

	if !forced && payout.GrossAmount < sched.MinimumThreshold {
		return skip(SkipBelowThreshold)
	}

	payout.PlatformFeeTotal += s.config.PayoutFixedFee
	payout.NetAmount = payout.GrossAmount - payout.ProcessorFeeTotal - payout.PlatformFeeTotal
	if payout.NetAmount <= 0 {
		return skip(SkipNetNotPositive)
	}

	// Clawbacks are taken oldest first while the payout stays positive; the
	// first one that does not fit and everything after it carry forward.
	adjustments, err := tx.Adjustments().ListUnapplied(ctx, cfg.BusinessID, cfg.ID)
	if err != nil {
		return nil, err
	}
	adjustmentIDs := make([]uint, 0, len(adjustments))
	for _, a := range adjustments {
		if payout.NetAmount-a.Amount <= 0 {
			break
		}
		payout.NetAmount -= a.Amount
		payout.AdjustmentTotal += a.Amount
		adjustmentIDs = append(adjustmentIDs, a.ID)
	}

	if err := tx.Payouts().Create(ctx, payout); err != nil {
		return nil, err
	}
	attached, err := tx.Payments().AttachToPayout(ctx, ids, payout.ID, now)
	if err != nil {
		return nil, err
	}
	if attached != int64(len(ids)) {
		return nil, fmt.Errorf("%w: attached %d of %d payments", repositories.ErrStaleWrite, attached, len(ids))
	}
	if err := tx.Adjustments().Apply(ctx, adjustmentIDs, payout.ID); err != nil {
		return nil, err
	}
	if err := tx.Schedules().MarkRun(ctx, sched.ID, now, true); err != nil {
		return nil, err
	}
	return &RunResult{Payout: payout, Schedule: sched}, nil
}

func (s *service) defaults(cfg *models.PaymentProcessorConfig) models.PayoutSchedule {
	frequency := cfg.SettlementSchedule
	if !validFrequency(frequency) {
		frequency = s.config.DefaultFrequency
	}
	return models.PayoutSchedule{
		BusinessID:        cfg.BusinessID,
		ProcessorConfigID: cfg.ID,
		Frequency:         frequency,
		MinimumThreshold:  s.config.DefaultThreshold,
		MaxHoldDays:       s.config.DefaultMaxHoldDays,
	}
}

// DueSchedules covers both stored schedules and active processors that
// have never been settled.
func (s *service) DueSchedules(ctx context.Context) ([]Pair, error) {
	now := s.now().UTC()

	schedules, err := s.store.Schedules().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[Pair]bool, len(schedules))
	var due []Pair
	for i := range schedules {
		sched := &schedules[i]
		pair := Pair{BusinessID: sched.BusinessID, ProcessorID: sched.ProcessorConfigID}
		known[pair] = true
		if !sched.OnHold && sched.IsDue(now) {
			due = append(due, pair)
		}
	}

	cfgs, err := s.store.Processors().ListAllActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, cfg := range cfgs {
		pair := Pair{BusinessID: cfg.BusinessID, ProcessorID: cfg.ID}
		if !known[pair] {
			due = append(due, pair)
		}
	}
	return due, nil
}

func (s *service) GetSchedule(ctx context.Context, businessID, processorID uint) (*models.PayoutSchedule, error) {
	cfg, err := s.ownedProcessor(ctx, businessID, processorID)
	if err != nil {
		return nil, err
	}
	var sched *models.PayoutSchedule
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		sched, err = tx.Schedules().GetOrCreateLocked(ctx, s.defaults(cfg))
		return err
	})
	return sched, err
}

func (s *service) UpdateSchedule(ctx context.Context, businessID, processorID uint, upd ScheduleUpdate) (*models.PayoutSchedule, error) {
	if upd.Frequency != nil && !validFrequency(*upd.Frequency) {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, *upd.Frequency)
	}
	if upd.MinimumThreshold != nil && *upd.MinimumThreshold < 0 {
		return nil, fmt.Errorf("%w: threshold must not be negative", ErrInvalidSchedule)
	}
	if upd.MaxHoldDays != nil && *upd.MaxHoldDays < 0 {
		return nil, fmt.Errorf("%w: max hold days must not be negative", ErrInvalidSchedule)
	}

	cfg, err := s.ownedProcessor(ctx, businessID, processorID)
	if err != nil {
		return nil, err
	}

	var sched *models.PayoutSchedule
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		sched, err = tx.Schedules().GetOrCreateLocked(ctx, s.defaults(cfg))
		if err != nil {
			return err
		}
		if upd.Frequency != nil {
			sched.Frequency = *upd.Frequency
		}
		if upd.MinimumThreshold != nil {
			sched.MinimumThreshold = *upd.MinimumThreshold
		}
		if upd.MaxHoldDays != nil {
			sched.MaxHoldDays = *upd.MaxHoldDays
		}
		if upd.OnHold != nil {
			sched.OnHold = *upd.OnHold
			if !sched.OnHold {
				sched.HoldReason = ""
			}
		}
		if upd.HoldReason != nil && sched.OnHold {
			sched.HoldReason = *upd.HoldReason
		}
		if upd.NotifyOnPayout != nil {
			sched.NotifyOnPayout = *upd.NotifyOnPayout
		}
		return tx.Schedules().Save(ctx, sched)
	})
	if err != nil {
		return nil, err
	}

	logger.SW("business_id", businessID, "processor_id", processorID).
		Infow("payout schedule updated", "frequency", sched.Frequency, "on_hold", sched.OnHold)
	return sched, nil
}

func (s *service) ListPayouts(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payout, int64, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Payouts().ListByBusiness(ctx, businessID, status, limit, offset)
}

func (s *service) GetPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, []models.Payment, error) {
	payout, err := s.ownedPayout(ctx, businessID, payoutID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.store.Payments().ListByPayout(ctx, payout.ID)
	if err != nil {
		return nil, nil, err
	}
	return payout, payments, nil
}

// RetryPayout puts a failed payout back in the queue with the same batch.
func (s *service) RetryPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, error) {
	payout, err := s.ownedPayout(ctx, businessID, payoutID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ok, err := s.store.Payouts().Transition(ctx, payout.ID,
		[]string{models.PayoutStatusFailed}, models.PayoutStatusPending,
		map[string]interface{}{
			"retry_count":    payout.RetryCount + 1,
			"next_retry_at":  now,
			"failure_reason": "",
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: payout is %s", ErrInvalidPayoutStatus, payout.Status)
	}

	logger.SW("payout_id", payout.PublicID, "retry", payout.RetryCount+1).Infow("payout queued for retry")
	return s.store.Payouts().GetByID(ctx, payout.ID)
}

func (s *service) UpdatePayoutStatus(ctx context.Context, payoutID uint, upd StatusUpdate) (*models.Payout, error) {
	from, ok := payoutSources[upd.Status]
	if !ok {
		return nil, fmt.Errorf("%w: cannot move a payout to %q", ErrInvalidPayoutStatus, upd.Status)
	}

	payout, err := s.store.Payouts().GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status == upd.Status {
		return payout, nil
	}

	now := s.now().UTC()
	updates := map[string]interface{}{}
	switch upd.Status {
	case models.PayoutStatusPaid:
		updates["paid_at"] = now
		updates["provider_transaction_id"] = upd.ProviderTransactionID
	case models.PayoutStatusFailed:
		updates["failure_reason"] = upd.FailureReason
	case models.PayoutStatusProcessing:
		if upd.ProviderTransactionID != "" {
			updates["provider_transaction_id"] = upd.ProviderTransactionID
		}
	}

	moved, err := s.store.Payouts().Transition(ctx, payout.ID, from, upd.Status, updates)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: payout is %s", ErrInvalidPayoutStatus, payout.Status)
	}

	payout, err = s.store.Payouts().GetByID(ctx, payout.ID)
	if err != nil {
		return nil, err
	}

	log := logger.SW("payout_id", payout.PublicID, "business_id", payout.BusinessID)
	switch upd.Status {
	case models.PayoutStatusPaid:
		log.Infow("payout paid", "net", payout.NetAmount)
		events.Emit(ctx, s.publisher, events.New(events.PayoutPaid, payout.BusinessID, payout))
	case models.PayoutStatusFailed:
		log.Warnw("payout failed", "reason", payout.FailureReason)
		events.Emit(ctx, s.publisher, events.New(events.PayoutFailed, payout.BusinessID, payout))
	default:
		log.Infow("payout processing")
	}
	return payout, nil
}

func (s *service) Report(ctx context.Context, businessID uint, from, to time.Time) (*Report, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	payments, err := s.store.Payments().ListCaptured(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}

	report := &Report{BusinessID: businessID, From: from, To: to, Lines: make([]ReportLine, 0, len(payments))}
	cfgs := map[uint]*models.PaymentProcessorConfig{}
	for _, p := range payments {
		cfg, ok := cfgs[p.ProcessorConfigID]
		if !ok {
			cfg, err = s.store.Processors().GetByID(ctx, p.ProcessorConfigID)
			if err != nil {
				return nil, err
			}
			cfgs[p.ProcessorConfigID] = cfg
		}

		line := ReportLine{
			PaymentID:   p.PublicID,
			OrderID:     p.OrderID,
			CapturedAt:  *p.CapturedAt,
			ProcessorID: p.ProcessorConfigID,
			Variant:     p.Variant,
			Currency:    p.Currency,
			Gross:       p.Amount - p.RefundedAmount,
			Settled:     p.PayoutID != nil,
			PayoutID:    p.PayoutID,
		}
		line.ProcessorFee = s.fees.ProcessorFee(cfg, p.Amount)
		line.PlatformFee = s.fees.PlatformFee(line.Gross)
		line.Net = line.Gross - line.ProcessorFee - line.PlatformFee

		report.Gross += line.Gross
		report.ProcessorFee += line.ProcessorFee
		report.PlatformFee += line.PlatformFee
		report.Net += line.Net
		report.Lines = append(report.Lines, line)
	}
	return report, nil
}

func (s *service) ownedProcessor(ctx context.Context, businessID, processorID uint) (*models.PaymentProcessorConfig, error) {
	cfg, err := s.store.Processors().GetByID(ctx, processorID)
	if err != nil {
		return nil, err
	}
	if cfg.BusinessID != businessID {
		return nil, models.ErrProcessorNotFound
	}
	return cfg, nil
}

func (s *service) ownedPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, error) {
	payout, err := s.store.Payouts().GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.BusinessID != businessID {
		return nil, models.ErrPayoutNotFound
	}
	return payout, nil
}

func validFrequency(f string) bool {
	switch f {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		return true
	}
	return false
}
