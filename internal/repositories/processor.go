package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menupay/internal/models"

	"gorm.io/gorm"
)

type ProcessorRepository interface {
	Create(ctx context.Context, cfg *models.PaymentProcessorConfig) error
	GetByID(ctx context.Context, id uint) (*models.PaymentProcessorConfig, error)
	ListByBusiness(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error)
	ListActive(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error)
	ListByVariant(ctx context.Context, variant models.ProcessorVariant) ([]models.PaymentProcessorConfig, error)
	ListAllActive(ctx context.Context) ([]models.PaymentProcessorConfig, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	MarkUsed(ctx context.Context, id uint, at time.Time) error
}

type processorRepository struct {
	db *gorm.DB
}

func (r *processorRepository) Create(ctx context.Context, cfg *models.PaymentProcessorConfig) error {
	if err := r.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create processor config: %w", err)
	}
	return nil
}

func (r *processorRepository) GetByID(ctx context.Context, id uint) (*models.PaymentProcessorConfig, error) {
	var cfg models.PaymentProcessorConfig
	if err := r.db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrProcessorNotFound
		}
		return nil, fmt.Errorf("failed to get processor config: %w", err)
	}
	return &cfg, nil
}

func (r *processorRepository) ListByBusiness(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error) {
	var cfgs []models.PaymentProcessorConfig
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&cfgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list processor configs: %w", err)
	}
	return cfgs, nil
}

// ListActive returns the active configs in selection order: ascending
// priority, then creation order.
func (r *processorRepository) ListActive(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error) {
	var cfgs []models.PaymentProcessorConfig
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, models.ProcessorStatusActive).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&cfgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active processors: %w", err)
	}
	return cfgs, nil
}

// ListByVariant returns every config of a variant that is still connected.
func (r *processorRepository) ListByVariant(ctx context.Context, variant models.ProcessorVariant) ([]models.PaymentProcessorConfig, error) {
	var cfgs []models.PaymentProcessorConfig
	err := r.db.WithContext(ctx).
		Where("variant = ? AND status <> ?", variant, models.ProcessorStatusDisconnected).
		Order("id ASC").
		Find(&cfgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s processors: %w", variant, err)
	}
	return cfgs, nil
}

func (r *processorRepository) ListAllActive(ctx context.Context) ([]models.PaymentProcessorConfig, error) {
	var cfgs []models.PaymentProcessorConfig
	if err := r.db.WithContext(ctx).Where("status = ?", models.ProcessorStatusActive).Order("id ASC").Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list active processors: %w", err)
	}
	return cfgs, nil
}

func (r *processorRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentProcessorConfig{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update processor config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrProcessorNotFound
	}
	return nil
}

// MarkFailed moves an active config to failed and records why. Configs that
// were disconnected meanwhile are left alone.
func (r *processorRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.PaymentProcessorConfig{}).
		Where("id = ? AND status = ?", id, models.ProcessorStatusActive).
		Updates(map[string]interface{}{
			"status":     models.ProcessorStatusFailed,
			"last_error": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark processor failed: %w", err)
	}
	return nil
}

func (r *processorRepository) MarkUsed(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.PaymentProcessorConfig{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to mark processor used: %w", err)
	}
	return nil
}
