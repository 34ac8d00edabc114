package progress

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/usecase/stream"
)

// Generator runs one generation session, reporting each transition to the
// observers.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, observers ...stream.Observer) (*domain.GenerationResult, error)
}

// Run shows the progress view while gen runs req. Quitting the view
// cancels the session. Run returns once the session has ended.
func Run(ctx context.Context, gen Generator, req domain.GenerationRequest, opts ...tea.ProgramOption) (*domain.GenerationResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(Title(req), cancel), opts...)

	type outcome struct {
		res *domain.GenerationResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := gen.Generate(ctx, req, stream.ObserverFunc(func(tr domain.Transition) {
			p.Send(TransitionMsg{Transition: tr})
		}))
		p.Send(DoneMsg{Result: res, Err: err})
		done <- outcome{res: res, err: err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("run progress view: %w", err)
	}
	out := <-done
	return out.res, out.err
}

// Title names a request for display.
func Title(req domain.GenerationRequest) string {
	if req.Topic != "" {
		return truncate(req.Topic, 60)
	}
	if t := req.PlanTitle(); t != "" {
		return truncate(t, 60)
	}
	return "presentation"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
