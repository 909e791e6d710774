package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is an append-only audit row for every provider event
// accepted by the reconciler. EventID carries the provider's own event
// identifier; its unique index is the deduplication guard.
type WebhookEvent struct {
	ID         string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID    string         `gorm:"column:event_id;type:varchar(255);not null;uniqueIndex" json:"event_id"`
	Type       string         `gorm:"column:type;type:varchar(255);not null" json:"type"`
	Data       datatypes.JSON `gorm:"column:data;type:jsonb" json:"data"`
	ReceivedAt time.Time      `gorm:"column:received_at;autoCreateTime" json:"received_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
