package deck

import (
	"fmt"

	"slidecoffee/internal/domain"
)

// QuotaError reports a spent monthly quota. It carries what the HTTP layer
// needs to build its 403 body.
type QuotaError struct {
	Reason  string
	Message string
	Limit   int
	Current int
	Err     error
}

func newQuotaError(plan domain.Plan, usage domain.MonthlyUsage, err error) *QuotaError {
	qe := &QuotaError{Err: err}
	if plan.SlidesPerMonth != domain.Unlimited && usage.Slides >= plan.SlidesPerMonth {
		qe.Reason = "Monthly slide limit reached"
		qe.Message = fmt.Sprintf("Your %s plan allows %d slides per month.", plan.Name, plan.SlidesPerMonth)
		qe.Limit = plan.SlidesPerMonth
		qe.Current = usage.Slides
		return qe
	}
	qe.Reason = "Monthly presentation limit reached"
	qe.Message = fmt.Sprintf("Your %s plan allows %d presentations per month.", plan.Name, plan.PresentationsPerMonth)
	qe.Limit = plan.PresentationsPerMonth
	qe.Current = usage.Presentations
	return qe
}

func (e *QuotaError) Error() string { return e.Reason + ": " + e.Message }
func (e *QuotaError) Unwrap() error { return e.Err }
