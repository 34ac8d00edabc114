package domain

import "fmt"

// Unlimited marks a plan quota without a ceiling.
const Unlimited = -1

// MaxSlidesPerGeneration caps a single generation regardless of plan.
const MaxSlidesPerGeneration = 50

// DefaultPlanID is used when a caller's plan is unknown.
const DefaultPlanID = "espresso"

// Plan is a subscription tier with monthly generation quotas.
type Plan struct {
	ID                    string `yaml:"id" json:"id"`
	Name                  string `yaml:"name" json:"name"`
	SlidesPerMonth        int    `yaml:"slides_per_month" json:"slidesPerMonth"`
	PresentationsPerMonth int    `yaml:"presentations_per_month" json:"presentationsPerMonth"`
}

// MonthlyUsage is what a workspace has consumed since the start of the month.
type MonthlyUsage struct {
	Slides        int
	Presentations int
}

// DefaultPlans returns the built-in plan catalog keyed by plan id.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		"espresso":    {ID: "espresso", Name: "Espresso", SlidesPerMonth: 5, PresentationsPerMonth: 1},
		"americano":   {ID: "americano", Name: "Americano", SlidesPerMonth: 75, PresentationsPerMonth: 7},
		"cappuccino":  {ID: "cappuccino", Name: "Cappuccino", SlidesPerMonth: 450, PresentationsPerMonth: 30},
		"coldbrew":    {ID: "coldbrew", Name: "Cold Brew", SlidesPerMonth: 800, PresentationsPerMonth: 60},
		"frenchpress": {ID: "frenchpress", Name: "French Press", SlidesPerMonth: Unlimited, PresentationsPerMonth: Unlimited},
	}
}

// LookupPlan returns the plan with id from catalog, falling back to the
// default plan.
func LookupPlan(catalog map[string]Plan, id string) Plan {
	if p, ok := catalog[id]; ok {
		return p
	}
	if p, ok := catalog[DefaultPlanID]; ok {
		return p
	}
	return DefaultPlans()[DefaultPlanID]
}

// SlideBudget checks usage against the plan and returns how many slides a
// new generation may produce. It fails when either monthly quota is spent.
func (p Plan) SlideBudget(u MonthlyUsage) (int, error) {
	budget := MaxSlidesPerGeneration
	if p.SlidesPerMonth != Unlimited {
		remaining := p.SlidesPerMonth - u.Slides
		if remaining <= 0 {
			return 0, NewSubSystemError("plan", "Plan.SlideBudget", ErrLimitReached,
				fmt.Sprintf("monthly slide limit reached: your %s plan allows %d slides per month", p.Name, p.SlidesPerMonth))
		}
		budget = min(budget, remaining)
	}
	if p.PresentationsPerMonth != Unlimited && u.Presentations >= p.PresentationsPerMonth {
		return 0, NewSubSystemError("plan", "Plan.SlideBudget", ErrLimitReached,
			fmt.Sprintf("monthly presentation limit reached: your %s plan allows %d presentations per month", p.Name, p.PresentationsPerMonth))
	}
	return budget, nil
}
