package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanInterval_PeriodEnd(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		interval PlanInterval
		count    int
		want     time.Time
	}{
		{"one_day", PlanIntervalDay, 1, start.AddDate(0, 0, 1)},
		{"three_days", PlanIntervalDay, 3, start.AddDate(0, 0, 3)},
		{"two_weeks", PlanIntervalWeek, 2, start.AddDate(0, 0, 14)},
		{"one_month", PlanIntervalMonth, 1, start.AddDate(0, 0, 30)},
		{"two_months_is_sixty_days", PlanIntervalMonth, 2, start.AddDate(0, 0, 60)},
		{"one_year", PlanIntervalYear, 1, start.AddDate(0, 0, 365)},
		{"unknown_defaults_thirty_days", PlanInterval("fortnight"), 1, start.AddDate(0, 0, 30)},
		{"zero_count_treated_as_one", PlanIntervalMonth, 0, start.AddDate(0, 0, 30)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.interval.PeriodEnd(start, tc.count))
		})
	}
}

func TestPlanInterval_Valid(t *testing.T) {
	require.True(t, PlanIntervalMonth.Valid())
	require.False(t, PlanInterval("quarter").Valid())
}

func TestSubscriptionStatus_Terminal(t *testing.T) {
	require.True(t, SubscriptionStatusCanceled.Terminal())
	for _, s := range []SubscriptionStatus{
		SubscriptionStatusPending, SubscriptionStatusTrialing, SubscriptionStatusActive,
		SubscriptionStatusPastDue, SubscriptionStatusUnpaid,
	} {
		require.False(t, s.Terminal(), "status %s must not be terminal", s)
	}
}

func TestSubscriptionStatus_Qualifying(t *testing.T) {
	require.True(t, SubscriptionStatusActive.Qualifying())
	require.True(t, SubscriptionStatusTrialing.Qualifying())
	require.False(t, SubscriptionStatusPending.Qualifying())
	require.False(t, SubscriptionStatusCanceled.Qualifying())
	require.False(t, SubscriptionStatusPastDue.Qualifying())
}
