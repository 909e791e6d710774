package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/types"
)

// Validation runs before any provider or storage access, so nil deps are
// fine here.
func TestCreate_RejectsInvalidInput(t *testing.T) {
	s := NewService(nil, nil, zap.NewNop().Sugar())

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing_name", CreateInput{Amount: 999, Interval: types.PlanIntervalMonth}},
		{"zero_amount", CreateInput{Name: "basic", Amount: 0, Interval: types.PlanIntervalMonth}},
		{"negative_amount", CreateInput{Name: "basic", Amount: -100, Interval: types.PlanIntervalMonth}},
		{"bad_interval", CreateInput{Name: "basic", Amount: 999, Interval: "fortnight"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tc.in)
			require.Error(t, err)
			require.True(t, apperr.IsValidation(err))
		})
	}
}
