package repository

import (
	"github.com/matchharper/harper-beta-sub001/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventRepository persists one row per processed provider delivery.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// MarkProcessed claims an event key atomically. It returns false when the
// key was already claimed, which is the signal to skip the credit grant for
// a duplicate delivery. Providers retry on non-2xx, so the claim happens in
// the same statement as the existence check.
func (r *WebhookEventRepository) MarkProcessed(provider, eventKey, eventName string) (bool, error) {
	event := models.WebhookEvent{
		Provider:  provider,
		EventKey:  eventKey,
		EventName: eventName,
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "event_key"}},
		DoNothing: true,
	}).Create(&event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
