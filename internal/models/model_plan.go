package models

import (
	"time"

	"github.com/perkflow/perkflow/pkg/types"
)

// Plan is a billing plan mirrored to the payment provider as a
// product/price pair. Amount is stored in minor currency units (cents).
type Plan struct {
	ID              string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name            string             `gorm:"column:name;type:varchar(50);not null;uniqueIndex" json:"name"`
	StripeProductID *string            `gorm:"column:stripe_product_id;type:varchar(255)" json:"stripe_product_id"`
	StripePriceID   *string            `gorm:"column:stripe_price_id;type:varchar(255)" json:"stripe_price_id"`
	Amount          int64              `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Interval        types.PlanInterval `gorm:"column:interval;type:varchar(20);not null;default:month" json:"interval"`
	IntervalCount   int                `gorm:"column:interval_count;not null;default:1" json:"interval_count"`
	Description     string             `gorm:"column:description;type:text" json:"description"`
	TrialDays       int                `gorm:"column:trial_days;not null;default:0" json:"trial_days"`
	Active          bool               `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (Plan) TableName() string { return "plan" }

// PeriodEnd computes the provisional end of a billing period starting at
// `from`, used before the provider reports its own period boundary.
func (p *Plan) PeriodEnd(from time.Time) time.Time {
	return p.Interval.PeriodEnd(from, p.IntervalCount)
}
