package repository

import (
	"errors"

	"github.com/matchharper/harper-beta-sub001/models"

	"gorm.io/gorm"
)

// PlanRepository reads the plan catalog. Lookups return (nil, nil) when no
// row matches so callers can distinguish "unknown plan" from a database
// failure.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) ByVariantID(variantID string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("ls_variant_id = ?", variantID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) ByPlanID(planID string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("plan_id = ?", planID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// FreePlan resolves the free tier by its sentinel variant id.
func (r *PlanRepository) FreePlan() (*models.Plan, error) {
	return r.ByVariantID(models.FreePlanVariantID)
}

func (r *PlanRepository) List() ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.Order("plan_id").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
