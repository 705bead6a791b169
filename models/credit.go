package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GrantType string

const (
	GrantTypeFree   GrantType = "free"
	GrantTypeAnnual GrantType = "annual"
)

// Credit is a user's spendable balance. At most one row per user, created on
// the first grant and mutated in place afterwards. charged_credit tracks what
// the last grants put in, remain_credit what is left to spend. Spending is
// owned by the search pipeline; this service only grants.
type Credit struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        string    `json:"userId" gorm:"type:uuid;not null;index"`
	ChargedCredit int64     `json:"chargedCredit"`
	RemainCredit  int64     `json:"remainCredit"`
	Type          GrantType `json:"type"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (c *Credit) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// LastGrantAt is the anchor for the next scheduled refill: the last grant
// timestamp, falling back to row creation for rows written before
// last_updated_at existed.
func (c *Credit) LastGrantAt() time.Time {
	if !c.LastUpdatedAt.IsZero() {
		return c.LastUpdatedAt
	}
	return c.CreatedAt
}
