package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook event outcomes
const (
	EventOutcomeApplied  = "applied"
	EventOutcomeIgnored  = "ignored"
	EventOutcomeConflict = "conflict"
)

// WebhookEvent logs every verified provider event. The unique index on
// (variant, provider_event_id) makes redelivered events detectable.
type WebhookEvent struct {
	ID                uint             `gorm:"primarykey" json:"id"`
	Variant           ProcessorVariant `gorm:"type:varchar(32);uniqueIndex:idx_webhook_events_provider;not null" json:"variant"`
	ProviderEventID   string           `gorm:"uniqueIndex:idx_webhook_events_provider;not null" json:"provider_event_id"`
	ProcessorConfigID uint             `gorm:"index" json:"processor_config_id"`
	EventType         string           `json:"event_type"`
	PaymentID         *uint            `gorm:"index" json:"payment_id,omitempty"`
	Outcome           string           `gorm:"type:varchar(16)" json:"outcome"`
	Payload           datatypes.JSON   `gorm:"type:jsonb" json:"-"`
	ReceivedAt        time.Time        `json:"received_at"`
}
