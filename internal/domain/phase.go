package domain

// Phase is the coarse stage of one generation session.
// Phases are ordered; a session never moves to a lower phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResearch
	PhaseOutline
	PhaseGenerating
	PhaseComplete
	PhaseError
)

var phaseNames = [...]string{
	PhaseIdle:       "idle",
	PhaseResearch:   "research",
	PhaseOutline:    "outline",
	PhaseGenerating: "generating",
	PhaseComplete:   "complete",
	PhaseError:      "error",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// IsTerminal reports whether no further events may be processed.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Transition is one accepted event together with the phase change it caused.
// From equals To for events that do not change phase.
type Transition struct {
	Seq   int
	From  Phase
	To    Phase
	Event StreamEvent
}

// Changed reports whether the transition moved the session to a new phase.
func (t Transition) Changed() bool {
	return t.From != t.To
}
