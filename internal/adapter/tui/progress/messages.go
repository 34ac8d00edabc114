// Package progress renders a live view of one generation session.
package progress

import "slidecoffee/internal/domain"

// TransitionMsg carries one accepted session transition into the view.
type TransitionMsg struct {
	Transition domain.Transition
}

// DoneMsg ends the view with the session's outcome.
type DoneMsg struct {
	Result *domain.GenerationResult
	Err    error
}
