package models

import (
	"time"
)

type PlanCycle int

const (
	CycleMonthly PlanCycle = 0
	CycleYearly  PlanCycle = 1
)

// FreePlanVariantID is the sentinel variant id marking the free tier in the
// plans table. The free plan is never sold, so it has no real provider
// variant.
const FreePlanVariantID = "0000000"

// Plan is reference data: one purchasable tier/interval combination and the
// recurring credit grant attached to it. Rows are seeded by hand and never
// written by this service.
type Plan struct {
	PlanID      string    `json:"planId" gorm:"column:plan_id;primaryKey"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Credit      *int64    `json:"credit"`
	Cycle       PlanCycle `json:"cycle"`
	LsVariantID string    `json:"lsVariantId" gorm:"column:ls_variant_id;index"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreditAmount returns the per-grant credit amount, substituting def when
// the column is NULL. A stored zero is a real zero and is not substituted.
func (p *Plan) CreditAmount(def int64) int64 {
	if p.Credit == nil {
		return def
	}
	return *p.Credit
}
