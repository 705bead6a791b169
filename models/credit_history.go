package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditHistory is the append-only audit log of grants. Rows are never
// updated or deleted. event_type is "{plan}_subscription" for purchase-driven
// grants and "{plan}_monthly_refill" for annual drips.
type CreditHistory struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID         string    `json:"userId" gorm:"type:uuid;not null;index"`
	ChargedCredits int64     `json:"chargedCredits"`
	EventType      string    `json:"eventType"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (h *CreditHistory) TableName() string {
	return "credits_history"
}

func (h *CreditHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
