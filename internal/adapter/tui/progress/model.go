package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"slidecoffee/internal/adapter/tui/theme"
	"slidecoffee/internal/adapter/tui/uxerror"
	"slidecoffee/internal/domain"
)

// maxListedSlides bounds the slide titles shown while generating.
const maxListedSlides = 6

// Model is the Bubble Tea model for a generation session.
type Model struct {
	title   string
	cancel  func()
	spinner spinner.Model

	phase      domain.Phase
	reached    domain.Phase // furthest non-error phase
	researched bool
	status     string
	sources    []domain.Source
	outline    *domain.Outline
	slides     []domain.Slide
	total      int
	progress   float64
	notices    []string

	result *domain.GenerationResult
	err    error
	done   bool
	width  int
}

// New creates a progress model. cancel is called when the user quits
// before the session ends; it may be nil.
func New(title string, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)
	return Model{
		title:   title,
		cancel:  cancel,
		spinner: s,
		status:  "Connecting" + theme.SymbolEllipsis,
		width:   theme.MaxContentWidth,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles session messages, key presses and resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = theme.Clamp(msg.Width, 20, theme.MaxContentWidth)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TransitionMsg:
		m.apply(msg.Transition)
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(tr domain.Transition) {
	m.phase = tr.To
	if tr.To != domain.PhaseError && tr.To > m.reached {
		m.reached = tr.To
	}
	if tr.To == domain.PhaseResearch {
		m.researched = true
	}

	switch e := tr.Event.(type) {
	case domain.StartEvent:
		m.setStatus(e.Message, "Starting")
	case domain.ResearchStartEvent:
		m.setStatus(e.Message, "Researching")
	case domain.ResearchSourceEvent:
		m.sources = append(m.sources, e.Source)
	case domain.ResearchCompleteEvent:
		m.setStatus(e.Message, fmt.Sprintf("Found %d sources", e.SourceCount))
	case domain.ResearchErrorEvent:
		m.notices = append(m.notices, nonEmpty(e.Message, "Research failed, continuing without sources"))
	case domain.OutlineStartEvent:
		m.setStatus(e.Message, "Creating outline")
	case domain.OutlineCompleteEvent:
		outline := e.Outline
		m.outline = &outline
		m.total = len(outline.Slides)
		m.setStatus(e.Message, fmt.Sprintf("Outline ready with %d slides", m.total))
	case domain.SlideStartEvent:
		m.setStatus(e.Message, "Generating slides")
	case domain.SlideGeneratedEvent:
		m.slides = append(m.slides, e.Slide)
		if e.TotalSlides > 0 {
			m.total = e.TotalSlides
		}
		m.progress = slideFraction(e, len(m.slides))
		m.status = fmt.Sprintf("Slide %d of %d", e.SlideNumber, m.total)
	case domain.SlidesCompleteEvent:
		m.progress = 1
		m.setStatus(e.Message, fmt.Sprintf("Generated %d slides", e.SlideCount))
	case domain.CompleteEvent:
		m.setStatus(e.Message, "Presentation created")
	case domain.ErrorEvent:
		m.status = e.Message
	}
}

func (m *Model) setStatus(msg, fallback string) {
	m.status = nonEmpty(msg, fallback)
}

// slideFraction prefers the server's percentage and falls back to the count
// of received slides over the total.
func slideFraction(e domain.SlideGeneratedEvent, received int) float64 {
	if e.Progress > 0 {
		return min(e.Progress/100, 1)
	}
	if e.TotalSlides <= 0 {
		return 0
	}
	return min(float64(received)/float64(e.TotalSlides), 1)
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// Result returns the session outcome once the view has finished.
func (m Model) Result() (*domain.GenerationResult, error) {
	return m.result, m.err
}

// View renders the current state.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("slidecoffee " + theme.SymbolArrowR + " " + m.title))
	sb.WriteString("\n")
	sb.WriteString(m.renderSteps())
	sb.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		sb.WriteString(uxerror.Humanize(m.err).Render())
	case m.done && m.result != nil:
		sb.WriteString(theme.TextSuccess.Render(fmt.Sprintf("%s %s (%d slides)", theme.SymbolSuccess, m.result.Title, m.result.SlideCount)))
		sb.WriteString("\n")
		sb.WriteString(theme.TextMuted.Render("id " + m.result.PresentationID))
	default:
		sb.WriteString(m.spinner.View() + " " + m.status)
	}

	if m.reached >= domain.PhaseGenerating && m.total > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(m.renderBar())
		sb.WriteString(m.renderSlides())
	}

	for _, n := range m.notices {
		sb.WriteString("\n")
		sb.WriteString(theme.TextWarning.Render(theme.SymbolWarning + " " + n))
	}
	if !m.done {
		sb.WriteString("\n\n")
		sb.WriteString(theme.Dim.Render("q to cancel"))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderSteps() string {
	steps := []struct {
		label string
		phase domain.Phase
	}{
		{"Research", domain.PhaseResearch},
		{"Outline", domain.PhaseOutline},
		{"Slides", domain.PhaseGenerating},
	}

	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		label := s.label
		switch {
		case s.phase == domain.PhaseResearch && !m.researched && m.reached > domain.PhaseResearch:
			parts = append(parts, theme.StepPending.Render(theme.SymbolPending+" "+label+" (skipped)"))
		case m.reached > s.phase || m.reached == domain.PhaseComplete:
			parts = append(parts, theme.StepDone.Render(theme.SymbolSuccess+" "+label))
		case m.reached == s.phase && m.phase == domain.PhaseError:
			parts = append(parts, theme.TextError.Render(theme.SymbolError+" "+label))
		case m.reached == s.phase:
			parts = append(parts, theme.StepActive.Render(theme.SymbolInfo+" "+label))
		default:
			parts = append(parts, theme.StepPending.Render(theme.SymbolPending+" "+label))
		}
	}
	return strings.Join(parts, theme.Dim.Render("  "+theme.SymbolArrowR+"  "))
}

func (m Model) renderBar() string {
	barWidth := max(m.width-10, 10)
	filled := min(int(m.progress*float64(barWidth)), barWidth)
	bar := theme.ProgressFull.Render(strings.Repeat("█", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat("░", barWidth-filled))
	return bar + theme.TextMuted.Render(fmt.Sprintf(" %d%%", int(m.progress*100)))
}

func (m Model) renderSlides() string {
	var sb strings.Builder
	start := max(len(m.slides)-maxListedSlides, 0)
	if start > 0 {
		sb.WriteString("\n")
		sb.WriteString(theme.TextMuted.Render(fmt.Sprintf("  %s %d earlier slides", theme.SymbolEllipsis, start)))
	}
	for i := start; i < len(m.slides); i++ {
		sb.WriteString(fmt.Sprintf("\n  %s %s", theme.TextMuted.Render(fmt.Sprintf("%2d.", i+1)), m.slides[i].Title))
	}
	return sb.String()
}
