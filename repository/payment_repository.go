package repository

import (
	"errors"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"

	"gorm.io/gorm"
)

// PaymentRepository owns every query against the subscription ledger. The
// "active subscription" rule (latest current_period_end still at or after
// now) is encoded here once; handlers never re-derive it.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// BySubscriptionID finds the ledger row for an external subscription id.
// Returns (nil, nil) when the webhook arrived before the creation event.
func (r *PaymentRepository) BySubscriptionID(subscriptionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("ls_subscription_id = ?", subscriptionID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ActiveSubscription returns the user's active subscription, or (nil, nil)
// when there is none. The schema does not enforce a single active row; the
// latest period end wins.
func (r *PaymentRepository) ActiveSubscription(userID string, now time.Time) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.
		Where("user_id = ? AND current_period_end >= ?", userID, now).
		Order("current_period_end DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ActiveSubscriptionWithPlan is ActiveSubscription with the plan joined in,
// for callers that need cycle/credit/name in the same read.
func (r *PaymentRepository) ActiveSubscriptionWithPlan(userID string, now time.Time) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.
		Preload("Plan").
		Where("user_id = ? AND current_period_end >= ?", userID, now).
		Order("current_period_end DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ActiveExternalSubscription is ActiveSubscription restricted to rows that
// carry a provider subscription id, for the outbound gateway calls.
func (r *PaymentRepository) ActiveExternalSubscription(userID string, now time.Time) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.
		Where("user_id = ? AND current_period_end >= ? AND ls_subscription_id <> ''", userID, now).
		Order("current_period_end DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// LatestPeriodEnd returns the most recent period end across all of the
// user's rows, active or lapsed. The free-tier drip resumes from it.
func (r *PaymentRepository) LatestPeriodEnd(userID string) (*time.Time, error) {
	var payment models.Payment
	err := r.db.
		Where("user_id = ? AND current_period_end IS NOT NULL", userID).
		Order("current_period_end DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment.CurrentPeriodEnd, nil
}

// OtherActiveSubscriptions lists the user's active rows other than
// excludeSubscriptionID, used to supersede stale subscriptions when a new
// one activates.
func (r *PaymentRepository) OtherActiveSubscriptions(userID, excludeSubscriptionID string, now time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("user_id = ? AND current_period_end >= ? AND ls_subscription_id <> '' AND ls_subscription_id <> ?",
			userID, now, excludeSubscriptionID).
		Order("current_period_end DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// PaymentUpsert carries one reconciled view of an external subscription.
type PaymentUpsert struct {
	SubscriptionID     string
	UserID             string
	PlanID             string
	CustomerID         string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// Upsert writes the ledger row for the external subscription: update when a
// row with that subscription id exists, insert otherwise. Webhook events can
// arrive out of order, so every event re-writes the full view it carries.
func (r *PaymentRepository) Upsert(u PaymentUpsert) error {
	existing, err := r.BySubscriptionID(u.SubscriptionID)
	if err != nil {
		return err
	}

	if existing != nil {
		return r.db.Model(&models.Payment{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"user_id":              u.UserID,
				"plan_id":              u.PlanID,
				"ls_subscription_id":   u.SubscriptionID,
				"ls_customer_id":       u.CustomerID,
				"current_period_start": u.CurrentPeriodStart,
				"current_period_end":   u.CurrentPeriodEnd,
				"cancel_at_period_end": u.CancelAtPeriodEnd,
			}).Error
	}

	payment := models.Payment{
		UserID:             u.UserID,
		PlanID:             u.PlanID,
		LsSubscriptionID:   u.SubscriptionID,
		LsCustomerID:       u.CustomerID,
		CurrentPeriodStart: u.CurrentPeriodStart,
		CurrentPeriodEnd:   u.CurrentPeriodEnd,
		CancelAtPeriodEnd:  u.CancelAtPeriodEnd,
	}
	return r.db.Create(&payment).Error
}
