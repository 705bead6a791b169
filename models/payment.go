package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is the subscription ledger: one row per external subscription
// lifecycle. A user may accumulate several historical rows; the row with the
// latest current_period_end at or after now is the active subscription.
// That rule lives in repository.PaymentRepository.ActiveSubscription and
// nowhere else.
type Payment struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID string `json:"userId" gorm:"type:uuid;not null;index"`
	PlanID string `json:"planId" gorm:"column:plan_id"`

	// External identifiers. The ls_ prefix is historical: the column carries
	// the subscription id of whichever provider sold the plan.
	LsSubscriptionID string `json:"lsSubscriptionId" gorm:"column:ls_subscription_id;index"`
	LsCustomerID     string `json:"lsCustomerId" gorm:"column:ls_customer_id"`

	CurrentPeriodStart *time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`

	Plan *Plan `json:"plan,omitempty" gorm:"foreignKey:PlanID;references:PlanID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
