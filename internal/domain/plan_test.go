package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPlan_Fallback(t *testing.T) {
	catalog := DefaultPlans()
	assert.Equal(t, "cappuccino", LookupPlan(catalog, "cappuccino").ID)
	assert.Equal(t, DefaultPlanID, LookupPlan(catalog, "mocha").ID)
	assert.Equal(t, DefaultPlanID, LookupPlan(nil, "mocha").ID)
}

func TestSlideBudget(t *testing.T) {
	plans := DefaultPlans()

	tests := []struct {
		name    string
		plan    string
		usage   MonthlyUsage
		want    int
		wantErr bool
	}{
		{"fresh espresso", "espresso", MonthlyUsage{}, 5, false},
		{"espresso partly used", "espresso", MonthlyUsage{Slides: 3}, 2, false},
		{"espresso slides spent", "espresso", MonthlyUsage{Slides: 5}, 0, true},
		{"espresso presentations spent", "espresso", MonthlyUsage{Slides: 1, Presentations: 1}, 0, true},
		{"americano capped per generation", "americano", MonthlyUsage{}, MaxSlidesPerGeneration, false},
		{"americano near limit", "americano", MonthlyUsage{Slides: 70, Presentations: 6}, 5, false},
		{"frenchpress unlimited", "frenchpress", MonthlyUsage{Slides: 10000, Presentations: 500}, MaxSlidesPerGeneration, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plans[tt.plan].SlideBudget(tt.usage)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrLimitReached))
				assert.Equal(t, CodePlanLimit, ErrorCodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartOfMonth(t *testing.T) {
	ts := time.Date(2026, 3, 17, 15, 4, 5, 6, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(ts))
}

func TestPhaseOrderingAndNames(t *testing.T) {
	order := []Phase{PhaseIdle, PhaseResearch, PhaseOutline, PhaseGenerating, PhaseComplete}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}
	assert.Equal(t, "generating", PhaseGenerating.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.True(t, PhaseComplete.IsTerminal())
	assert.True(t, PhaseError.IsTerminal())
	assert.False(t, PhaseOutline.IsTerminal())
}

func TestGenerationRequestHelpers(t *testing.T) {
	off := false
	req := GenerationRequest{
		PresentationPlan: []byte(`{"title":"Quarterly review"}`),
		Brand:            &Brand{ID: "b1"},
		EnableResearch:   &off,
	}
	assert.False(t, req.ResearchEnabled())
	assert.True(t, req.HasPlan())
	assert.Equal(t, "Quarterly review", req.PlanTitle())
	assert.Equal(t, "b1", req.EffectiveBrandID())

	empty := GenerationRequest{PresentationPlan: []byte("null")}
	assert.True(t, empty.ResearchEnabled())
	assert.False(t, empty.HasPlan())
	assert.Equal(t, "", empty.PlanTitle())
}
