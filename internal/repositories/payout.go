package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menupay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScheduleRepository interface {
	// GetOrCreateLocked loads the schedule of a pair, creating it from
	// defaults first if needed, and holds a row lock on it.
	GetOrCreateLocked(ctx context.Context, defaults models.PayoutSchedule) (*models.PayoutSchedule, error)
	Get(ctx context.Context, businessID, processorID uint) (*models.PayoutSchedule, error)
	Save(ctx context.Context, s *models.PayoutSchedule) error
	MarkRun(ctx context.Context, id uint, at time.Time, paid bool) error
	ListActive(ctx context.Context) ([]models.PayoutSchedule, error)
}

type scheduleRepository struct {
	db *gorm.DB
}

func (r *scheduleRepository) GetOrCreateLocked(ctx context.Context, defaults models.PayoutSchedule) (*models.PayoutSchedule, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "processor_config_id"}},
		DoNothing: true,
	}).Create(&defaults).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create payout schedule: %w", err)
	}

	var s models.PayoutSchedule
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND processor_config_id = ?", defaults.BusinessID, defaults.ProcessorConfigID).
		First(&s).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock payout schedule: %w", err)
	}
	return &s, nil
}

func (r *scheduleRepository) Get(ctx context.Context, businessID, processorID uint) (*models.PayoutSchedule, error) {
	var s models.PayoutSchedule
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND processor_config_id = ?", businessID, processorID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payout schedule: %w", err)
	}
	return &s, nil
}

func (r *scheduleRepository) Save(ctx context.Context, s *models.PayoutSchedule) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("failed to save payout schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) MarkRun(ctx context.Context, id uint, at time.Time, paid bool) error {
	updates := map[string]interface{}{"last_run_at": at}
	if paid {
		updates["last_payout_at"] = at
	}
	if err := r.db.WithContext(ctx).Model(&models.PayoutSchedule{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record schedule run: %w", err)
	}
	return nil
}

// ListActive returns the schedules whose processor is not disconnected.
func (r *scheduleRepository) ListActive(ctx context.Context) ([]models.PayoutSchedule, error) {
	var schedules []models.PayoutSchedule
	err := r.db.WithContext(ctx).
		Joins("JOIN payment_processor_configs ON payment_processor_configs.id = payout_schedules.processor_config_id").
		Where("payment_processor_configs.status <> ?", models.ProcessorStatusDisconnected).
		Order("payout_schedules.id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payout schedules: %w", err)
	}
	return schedules, nil
}

type PayoutRepository interface {
	Create(ctx context.Context, p *models.Payout) error
	GetByID(ctx context.Context, id uint) (*models.Payout, error)
	ListByBusiness(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payout, int64, error)
	// Transition moves a payout from one of from into to. It reports whether
	// a row changed.
	Transition(ctx context.Context, id uint, from []string, to string, updates map[string]interface{}) (bool, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func (r *payoutRepository) Create(ctx context.Context, p *models.Payout) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, id uint) (*models.Payout, error) {
	var p models.Payout
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return &p, nil
}

func (r *payoutRepository) ListByBusiness(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payout, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Payout{}).Where("business_id = ?", businessID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	var payouts []models.Payout
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&payouts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, total, nil
}

func (r *payoutRepository) Transition(ctx context.Context, id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("failed to move payout to %s: %w", to, result.Error)
	}
	return result.RowsAffected == 1, nil
}

type AdjustmentRepository interface {
	// Create records a clawback once per refund.
	Create(ctx context.Context, a *models.SettlementAdjustment) error
	ListUnapplied(ctx context.Context, businessID, processorID uint) ([]models.SettlementAdjustment, error)
	Apply(ctx context.Context, ids []uint, payoutID uint) error
}

type adjustmentRepository struct {
	db *gorm.DB
}

func (r *adjustmentRepository) Create(ctx context.Context, a *models.SettlementAdjustment) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "refund_id"}}, DoNothing: true}).
		Create(a).Error
	if err != nil {
		return fmt.Errorf("failed to create settlement adjustment: %w", err)
	}
	return nil
}

func (r *adjustmentRepository) ListUnapplied(ctx context.Context, businessID, processorID uint) ([]models.SettlementAdjustment, error) {
	var adjustments []models.SettlementAdjustment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND processor_config_id = ? AND applied_payout_id IS NULL", businessID, processorID).
		Order("id ASC").
		Find(&adjustments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement adjustments: %w", err)
	}
	return adjustments, nil
}

func (r *adjustmentRepository) Apply(ctx context.Context, ids []uint, payoutID uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.SettlementAdjustment{}).
		Where("id IN ? AND applied_payout_id IS NULL", ids).
		Update("applied_payout_id", payoutID).Error
	if err != nil {
		return fmt.Errorf("failed to apply settlement adjustments: %w", err)
	}
	return nil
}
