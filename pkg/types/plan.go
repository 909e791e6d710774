package types

import "time"

// PlanInterval is the billing cadence of a plan.
type PlanInterval string

const (
	PlanIntervalDay   PlanInterval = "day"
	PlanIntervalWeek  PlanInterval = "week"
	PlanIntervalMonth PlanInterval = "month"
	PlanIntervalYear  PlanInterval = "year"
)

func (i PlanInterval) Valid() bool {
	switch i {
	case PlanIntervalDay, PlanIntervalWeek, PlanIntervalMonth, PlanIntervalYear:
		return true
	}
	return false
}

// PeriodEnd returns the end of a billing period of `count` intervals
// starting at `start`. Months and years use fixed lengths (30/365 days),
// matching the provisional value the provider later overwrites with its own
// anchor-date arithmetic. Unknown intervals fall back to 30 days.
func (i PlanInterval) PeriodEnd(start time.Time, count int) time.Time {
	if count <= 0 {
		count = 1
	}
	switch i {
	case PlanIntervalDay:
		return start.AddDate(0, 0, count)
	case PlanIntervalWeek:
		return start.AddDate(0, 0, 7*count)
	case PlanIntervalMonth:
		return start.AddDate(0, 0, 30*count)
	case PlanIntervalYear:
		return start.AddDate(0, 0, 365*count)
	default:
		return start.AddDate(0, 0, 30)
	}
}
