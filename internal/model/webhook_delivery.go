package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookDelivery stores inbound webhook payloads, unique per provider
// delivery id so a redelivered webhook is handled once.
type WebhookDelivery struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	Provider       string         `gorm:"column:provider;size:20;not null;uniqueIndex:uk_webhook_deliveries_provider_delivery,priority:1"`
	DeliveryID     string         `gorm:"column:delivery_id;size:191;not null;uniqueIndex:uk_webhook_deliveries_provider_delivery,priority:2"`
	EventType      string         `gorm:"column:event_type;size:100;not null;index"`
	Payload        datatypes.JSON `gorm:"column:payload"`
	SignatureValid bool           `gorm:"column:signature_valid;not null;default:false"`
	ProcessedAt    *time.Time     `gorm:"column:processed_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
