package repository

import (
	"errors"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"

	"gorm.io/gorm"
)

// GrantMode selects how a grant combines with the existing balance.
//
// Purchase-driven grants (webhooks) are additive: a renewal tops up whatever
// is left. Scheduled refills replace: a drip resets the balance to the flat
// per-period entitlement and must not compound. Both ledgers and the audit
// log are written through ApplyGrant so the asymmetry lives in one place.
type GrantMode int

const (
	GrantAdditive GrantMode = iota
	GrantReplace
)

// CreditRepository owns the credits balance row and its audit log.
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// ByUserID returns the user's balance row, or (nil, nil) before the first
// grant.
func (r *CreditRepository) ByUserID(userID string) (*models.Credit, error) {
	var credit models.Credit
	err := r.db.Where("user_id = ?", userID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &credit, nil
}

// ApplyGrant mutates the balance row (insert on first grant) and appends one
// history entry.
//
// at becomes last_updated_at: callers pass the wall clock for additive
// grants and the computed due date for replacement refills, so the next due
// date is anchored to the schedule rather than to whenever the refresh
// endpoint happened to run. grantType tags the row ("free"/"annual") and is
// left untouched when empty.
func (r *CreditRepository) ApplyGrant(userID string, amount int64, mode GrantMode, at time.Time, grantType models.GrantType, historyEvent string) error {
	existing, err := r.ByUserID(userID)
	if err != nil {
		return err
	}

	charged := amount
	remain := amount
	if mode == GrantAdditive && existing != nil {
		charged = existing.ChargedCredit + amount
		remain = existing.RemainCredit + amount
	}

	if existing != nil {
		updates := map[string]interface{}{
			"charged_credit":  charged,
			"remain_credit":   remain,
			"last_updated_at": at,
		}
		if grantType != "" {
			updates["type"] = grantType
		}
		if err := r.db.Model(&models.Credit{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}
	} else {
		credit := models.Credit{
			UserID:        userID,
			ChargedCredit: charged,
			RemainCredit:  remain,
			Type:          grantType,
			LastUpdatedAt: at,
		}
		if err := r.db.Create(&credit).Error; err != nil {
			return err
		}
	}

	history := models.CreditHistory{
		UserID:         userID,
		ChargedCredits: amount,
		EventType:      historyEvent,
	}
	return r.db.Create(&history).Error
}
