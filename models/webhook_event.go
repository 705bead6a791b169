package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent records one processed provider delivery. The unique
// (provider, event_key) index is what makes credit-granting webhook handlers
// safe under duplicate delivery: the grant only runs when the insert lands.
type WebhookEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Provider  string    `json:"provider" gorm:"uniqueIndex:idx_webhook_events_provider_key"`
	EventKey  string    `json:"eventKey" gorm:"uniqueIndex:idx_webhook_events_provider_key"`
	EventName string    `json:"eventName"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
