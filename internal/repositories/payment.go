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

var capturedStatuses = []string{
	models.PaymentStatusSucceeded,
	models.PaymentStatusPartiallyRefunded,
	models.PaymentStatusRefunded,
}

type PaymentRepository interface {
	// CreateIfAbsent inserts p unless a payment with the same processor and
	// provider reference exists, in which case p is overwritten with it.
	CreateIfAbsent(ctx context.Context, p *models.Payment) (created bool, err error)
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.Payment, error)
	GetByReference(ctx context.Context, processorID uint, reference string) (*models.Payment, error)
	LockByID(ctx context.Context, id uint) (*models.Payment, error)
	ListByBusiness(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payment, int64, error)
	HasCaptured(ctx context.Context, orderID string) (bool, error)
	CountFailed(ctx context.Context, orderID string, processorID uint) (int64, error)

	// Transition moves a payment into to only if its current status may
	// legally do so. It reports whether a row changed.
	Transition(ctx context.Context, id uint, to string, updates map[string]interface{}) (bool, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error

	ListSettleable(ctx context.Context, businessID, processorID uint, asOf time.Time) ([]models.Payment, error)
	AttachToPayout(ctx context.Context, ids []uint, payoutID uint, at time.Time) (int64, error)
	ListByPayout(ctx context.Context, payoutID uint) ([]models.Payment, error)
	ListCaptured(ctx context.Context, businessID uint, from, to time.Time) ([]models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) CreateIfAbsent(ctx context.Context, p *models.Payment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "processor_config_id"}, {Name: "provider_reference"}},
			DoNothing: true,
		}).
		Create(p)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create payment: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	existing, err := r.GetByReference(ctx, p.ProcessorConfigID, p.ProviderReference)
	if err != nil {
		return false, err
	}
	*p = *existing
	return false, nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *paymentRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("public_id = ?", publicID))
}

func (r *paymentRepository) GetByReference(ctx context.Context, processorID uint, reference string) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("processor_config_id = ? AND provider_reference = ?", processorID, reference))
}

// LockByID loads the payment with a row lock held until the surrounding
// transaction ends.
func (r *paymentRepository) LockByID(ctx context.Context, id uint) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *paymentRepository) first(q *gorm.DB) (*models.Payment, error) {
	var p models.Payment
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

func (r *paymentRepository) ListByBusiness(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Payment{}).Where("business_id = ?", businessID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	var payments []models.Payment
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}

func (r *paymentRepository) HasCaptured(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status IN ?", orderID, capturedStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check order payments: %w", err)
	}
	return count > 0, nil
}

func (r *paymentRepository) CountFailed(ctx context.Context, orderID string, processorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND processor_config_id = ? AND status = ?", orderID, processorID, models.PaymentStatusFailed).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failed payments: %w", err)
	}
	return count, nil
}

func (r *paymentRepository) Transition(ctx context.Context, id uint, to string, updates map[string]interface{}) (bool, error) {
	from := models.SourceStatuses(to)
	if len(from) == 0 {
		return false, nil
	}
	values := map[string]interface{}{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition payment to %s: %w", to, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrPaymentNotFound
	}
	return nil
}

// ListSettleable locks the captured, unsettled, eligible payments of a
// business+processor pair captured at or before asOf, oldest first.
func (r *paymentRepository) ListSettleable(ctx context.Context, businessID, processorID uint, asOf time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND processor_config_id = ?", businessID, processorID).
		Where("status IN ?", []string{models.PaymentStatusSucceeded, models.PaymentStatusPartiallyRefunded}).
		Where("settlement_eligible = ? AND payout_id IS NULL", true).
		Where("captured_at IS NOT NULL AND captured_at <= ?", asOf).
		Order("captured_at ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list settleable payments: %w", err)
	}
	return payments, nil
}

// AttachToPayout settles the given payments into a payout. Payments already
// attached elsewhere are skipped, so callers compare the count.
func (r *paymentRepository) AttachToPayout(ctx context.Context, ids []uint, payoutID uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id IN ? AND payout_id IS NULL", ids).
		Updates(map[string]interface{}{"payout_id": payoutID, "settled_at": at})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to attach payments to payout: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *paymentRepository) ListByPayout(ctx context.Context, payoutID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Where("payout_id = ?", payoutID).Order("captured_at ASC, id ASC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payout payments: %w", err)
	}
	return payments, nil
}

// ListCaptured returns the captured payments of a business whose capture
// falls in [from, to), ordered by capture time.
func (r *paymentRepository) ListCaptured(ctx context.Context, businessID uint, from, to time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessID, capturedStatuses).
		Where("captured_at >= ? AND captured_at < ?", from, to).
		Order("captured_at ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list captured payments: %w", err)
	}
	return payments, nil
}
