package repositories

import (
	"context"
	"fmt"

	"menupay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// Record stores a verified event. It reports false when the provider
	// event id was already recorded for the variant.
	Record(ctx context.Context, evt *models.WebhookEvent) (bool, error)
	SetOutcome(ctx context.Context, id uint, outcome string, paymentID *uint) error
	ListByPayment(ctx context.Context, paymentID uint) ([]models.WebhookEvent, error)
}

type webhookEventRepository struct {
	db *gorm.DB
}

func (r *webhookEventRepository) Record(ctx context.Context, evt *models.WebhookEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(evt)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *webhookEventRepository) SetOutcome(ctx context.Context, id uint, outcome string, paymentID *uint) error {
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"outcome": outcome, "payment_id": paymentID}).Error
	if err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}
	return nil
}

func (r *webhookEventRepository) ListByPayment(ctx context.Context, paymentID uint) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("received_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return events, nil
}
