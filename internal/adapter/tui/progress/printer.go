package progress

import (
	"fmt"
	"io"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/usecase/stream"
)

// Printer writes one line per transition. It is used when the output is
// not a terminal.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// OnTransition implements stream.Observer.
func (p *Printer) OnTransition(tr domain.Transition) {
	if tr.Changed() {
		fmt.Fprintf(p.w, "[%s]\n", tr.To)
	}
	switch e := tr.Event.(type) {
	case domain.ResearchSourceEvent:
		fmt.Fprintf(p.w, "  source: %s (%s)\n", e.Title, e.URL)
	case domain.OutlineCompleteEvent:
		fmt.Fprintf(p.w, "  outline: %s, %d slides\n", e.Outline.Title, len(e.Outline.Slides))
	case domain.SlideGeneratedEvent:
		fmt.Fprintf(p.w, "  slide %d/%d: %s\n", e.SlideNumber, e.TotalSlides, e.Slide.Title)
	case domain.ResearchErrorEvent:
		fmt.Fprintf(p.w, "  warning: %s\n", nonEmpty(e.Message, "research failed"))
	case domain.ErrorEvent:
		fmt.Fprintf(p.w, "  error: %s\n", e.Message)
	case domain.CompleteEvent:
		fmt.Fprintf(p.w, "  presentation: %s\n", e.PresentationID())
	}
}

var _ stream.Observer = (*Printer)(nil)
