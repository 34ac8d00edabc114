package stream

import (
	"fmt"

	"slidecoffee/internal/domain"
)

// Machine tracks the phase of one generation session and the data collected
// along the way. Phases only move forward; once complete or error is reached
// every further event is rejected with domain.ErrSessionClosed.
type Machine struct {
	phase        domain.Phase
	seq          int
	researchDone bool
	progress     float64

	sources []domain.Source
	outline *domain.Outline
	slides  []domain.Slide
	result  *domain.GenerationResult
	err     error
}

// NewMachine returns a machine in the idle phase.
func NewMachine() *Machine {
	return &Machine{phase: domain.PhaseIdle}
}

// Phase returns the current phase.
func (m *Machine) Phase() domain.Phase { return m.phase }

// ResearchDone reports whether research finished, successfully or not.
func (m *Machine) ResearchDone() bool { return m.researchDone }

// Progress returns slide generation progress as a 0-100 percentage.
func (m *Machine) Progress() float64 { return m.progress }

// Sources returns the research sources received so far.
func (m *Machine) Sources() []domain.Source { return m.sources }

// Outline returns the captured outline, or nil.
func (m *Machine) Outline() *domain.Outline { return m.outline }

// Slides returns the slides received so far, in arrival order.
func (m *Machine) Slides() []domain.Slide { return m.slides }

// Result returns the success value once the machine is complete.
func (m *Machine) Result() *domain.GenerationResult { return m.result }

// Err returns the terminal failure once the machine is in the error phase.
func (m *Machine) Err() error { return m.err }

// Apply feeds one event to the machine.
//
// A rejected event returns a zero Transition and an error wrapping
// domain.ErrInvalidTransition or domain.ErrSessionClosed; the machine is
// unchanged. An accepted event that fails the session (an error event, or a
// completion without a presentation id) returns its Transition together with
// a *domain.GenerationError.
func (m *Machine) Apply(ev domain.StreamEvent) (domain.Transition, error) {
	if m.phase.IsTerminal() {
		return domain.Transition{}, fmt.Errorf("%w: %s event after %s", domain.ErrSessionClosed, ev.Type(), m.phase)
	}

	from := m.phase
	switch e := ev.(type) {
	case domain.StartEvent:
		if m.phase != domain.PhaseIdle {
			return m.reject(ev)
		}

	case domain.ResearchStartEvent:
		if m.phase != domain.PhaseIdle {
			return m.reject(ev)
		}
		m.phase = domain.PhaseResearch

	case domain.ResearchSourceEvent:
		if !m.enter(domain.PhaseResearch) || m.researchDone {
			return m.reject(ev)
		}
		m.sources = append(m.sources, e.Source)

	case domain.ResearchCompleteEvent, domain.ResearchErrorEvent:
		if !m.enter(domain.PhaseResearch) || m.researchDone {
			return m.reject(ev)
		}
		m.researchDone = true

	case domain.OutlineStartEvent:
		if m.phase != domain.PhaseIdle && m.phase != domain.PhaseResearch {
			return m.reject(ev)
		}
		m.phase = domain.PhaseOutline

	case domain.OutlineCompleteEvent:
		if !m.enter(domain.PhaseOutline) {
			return m.reject(ev)
		}
		outline := e.Outline
		m.outline = &outline

	case domain.SlideStartEvent:
		if m.phase > domain.PhaseOutline {
			return m.reject(ev)
		}
		m.phase = domain.PhaseGenerating

	case domain.SlideGeneratedEvent:
		if !m.enter(domain.PhaseGenerating) {
			return m.reject(ev)
		}
		m.slides = append(m.slides, e.Slide)
		m.progress = max(m.progress, slideProgress(e))

	case domain.SlidesCompleteEvent:
		if !m.enter(domain.PhaseGenerating) {
			return m.reject(ev)
		}

	case domain.CompleteEvent:
		if e.PresentationID() == "" {
			return m.fail(ev, domain.IncompleteError())
		}
		m.phase = domain.PhaseComplete
		m.progress = 100
		m.result = m.buildResult(e)

	case domain.ErrorEvent:
		msg := e.Message
		if msg == "" {
			msg = domain.ErrGenerationFailed.Error()
		}
		return m.fail(ev, domain.NewGenerationError(domain.KindProtocol, msg, domain.ErrGenerationFailed))

	default:
		return domain.Transition{}, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, ev.Type())
	}

	return m.next(from, ev), nil
}

// Abort moves a non-terminal machine to the error phase without an event,
// for failures detected outside the stream such as EOF or cancellation.
func (m *Machine) Abort(err error) {
	if m.phase.IsTerminal() {
		return
	}
	m.phase = domain.PhaseError
	m.err = err
}

// enter checks that an event belonging to phase p may be applied and moves
// the machine there. Events that arrive before their phase's start event
// advance the machine implicitly; events for an earlier phase are refused
// and leave the machine unchanged.
func (m *Machine) enter(p domain.Phase) bool {
	if m.phase > p {
		return false
	}
	m.phase = p
	return true
}

func (m *Machine) next(from domain.Phase, ev domain.StreamEvent) domain.Transition {
	m.seq++
	return domain.Transition{Seq: m.seq, From: from, To: m.phase, Event: ev}
}

func (m *Machine) reject(ev domain.StreamEvent) (domain.Transition, error) {
	detail := fmt.Sprintf("%s event in %s phase", ev.Type(), m.phase)
	if m.researchDone && m.phase == domain.PhaseResearch {
		detail += " after research finished"
	}
	return domain.Transition{}, domain.NewDomainError("Machine.Apply", domain.ErrInvalidTransition, detail)
}

func (m *Machine) fail(ev domain.StreamEvent, err *domain.GenerationError) (domain.Transition, error) {
	from := m.phase
	m.phase = domain.PhaseError
	m.err = err
	return m.next(from, ev), err
}

func (m *Machine) buildResult(e domain.CompleteEvent) *domain.GenerationResult {
	res := &domain.GenerationResult{
		PresentationID: e.Presentation.ID,
		Title:          e.Presentation.Title,
		SlideCount:     e.Presentation.SlideCount,
		Sources:        e.Sources,
		Outline:        m.outline,
		Slides:         m.slides,
	}
	if res.Title == "" && m.outline != nil {
		res.Title = m.outline.Title
	}
	if res.SlideCount == 0 {
		res.SlideCount = len(m.slides)
	}
	if res.Sources == nil {
		for _, s := range m.sources {
			res.Sources = append(res.Sources, domain.SourceRef{URL: s.URL, Title: s.Title})
		}
	}
	return res
}

// slideProgress prefers the server's percentage and falls back to the slide
// ordinal over the total.
func slideProgress(e domain.SlideGeneratedEvent) float64 {
	p := e.Progress
	if p <= 0 && e.TotalSlides > 0 {
		p = float64(e.SlideNumber) / float64(e.TotalSlides) * 100
	}
	return min(max(p, 0), 100)
}
