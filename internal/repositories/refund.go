package repositories

import (
	"context"
	"errors"
	"fmt"

	"menupay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundRepository interface {
	Create(ctx context.Context, r *models.PaymentRefund) error
	GetByID(ctx context.Context, id uint) (*models.PaymentRefund, error)
	FindByProviderID(ctx context.Context, paymentID uint, providerRefundID string) (*models.PaymentRefund, error)
	LockPendingByProviderID(ctx context.Context, paymentID uint, providerRefundID string) (*models.PaymentRefund, error)
	ListByPayment(ctx context.Context, paymentID uint) ([]models.PaymentRefund, error)
	SumPending(ctx context.Context, paymentID uint) (int64, error)
	CountByPayment(ctx context.Context, paymentID uint) (int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
}

type refundRepository struct {
	db *gorm.DB
}

func (r *refundRepository) Create(ctx context.Context, refund *models.PaymentRefund) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

func (r *refundRepository) GetByID(ctx context.Context, id uint) (*models.PaymentRefund, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *refundRepository) FindByProviderID(ctx context.Context, paymentID uint, providerRefundID string) (*models.PaymentRefund, error) {
	return r.first(r.db.WithContext(ctx).Where("payment_id = ? AND provider_refund_id = ?", paymentID, providerRefundID))
}

func (r *refundRepository) LockPendingByProviderID(ctx context.Context, paymentID uint, providerRefundID string) (*models.PaymentRefund, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ? AND provider_refund_id = ? AND status = ?", paymentID, providerRefundID, models.RefundStatusPending))
}

func (r *refundRepository) first(q *gorm.DB) (*models.PaymentRefund, error) {
	var refund models.PaymentRefund
	if err := q.First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &refund, nil
}

func (r *refundRepository) ListByPayment(ctx context.Context, paymentID uint) ([]models.PaymentRefund, error) {
	var refunds []models.PaymentRefund
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("id ASC").Find(&refunds).Error; err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

// SumPending is the amount reserved by refunds still awaiting the provider.
func (r *refundRepository) SumPending(ctx context.Context, paymentID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.PaymentRefund{}).
		Where("payment_id = ? AND status = ?", paymentID, models.RefundStatusPending).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum pending refunds: %w", err)
	}
	return total, nil
}

func (r *refundRepository) CountByPayment(ctx context.Context, paymentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentRefund{}).Where("payment_id = ?", paymentID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count refunds: %w", err)
	}
	return count, nil
}

func (r *refundRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentRefund{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update refund: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrRefundNotFound
	}
	return nil
}
