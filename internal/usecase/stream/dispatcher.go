package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"slidecoffee/internal/domain"
)

// Observer receives every accepted transition, in stream order.
type Observer interface {
	OnTransition(tr domain.Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(tr domain.Transition)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(tr domain.Transition) { f(tr) }

// DecodeFrame parses a frame into a typed event. The type comes from the
// frame's event name and falls back to the payload's "type" field.
// Invalid JSON yields domain.ErrMalformedFrame; an unknown or missing type
// yields domain.ErrUnknownEvent.
func DecodeFrame(f Frame) (domain.StreamEvent, error) {
	name := f.Event
	if name == "" || name == "message" {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(f.Data, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		name = probe.Type
	}
	if !domain.KnownEventType(name) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, name)
	}
	return domain.UnmarshalEvent(domain.EventType(name), f.Data)
}

// Dispatcher decodes frames, applies them to a Machine and notifies
// observers. Frames that cannot be decoded or that the machine rejects as
// out of order are logged and dropped.
type Dispatcher struct {
	machine   *Machine
	logger    *slog.Logger
	observers []Observer
	dropped   int
}

// NewDispatcher creates a dispatcher driving machine.
func NewDispatcher(machine *Machine, logger *slog.Logger, observers ...Observer) *Dispatcher {
	return &Dispatcher{
		machine:   machine,
		logger:    logger,
		observers: observers,
	}
}

// Subscribe registers an observer for subsequent transitions.
func (d *Dispatcher) Subscribe(o Observer) {
	d.observers = append(d.observers, o)
}

// Dropped returns how many frames were skipped.
func (d *Dispatcher) Dropped() int { return d.dropped }

// Dispatch handles one frame. It returns a nil transition for dropped
// frames. When the frame ends the session in failure the transition is
// returned together with the *domain.GenerationError. After the machine is
// terminal every frame returns domain.ErrSessionClosed.
func (d *Dispatcher) Dispatch(f Frame) (*domain.Transition, error) {
	ev, err := DecodeFrame(f)
	if err != nil {
		d.drop("dropping undecodable frame", f, err)
		return nil, nil
	}

	tr, err := d.machine.Apply(ev)
	if err != nil {
		var ge *domain.GenerationError
		switch {
		case errors.As(err, &ge):
			d.notify(tr)
			return &tr, ge
		case errors.Is(err, domain.ErrSessionClosed):
			return nil, err
		default:
			d.drop("dropping out-of-order event", f, err)
			return nil, nil
		}
	}

	d.notify(tr)
	return &tr, nil
}

func (d *Dispatcher) notify(tr domain.Transition) {
	for _, o := range d.observers {
		o.OnTransition(tr)
	}
}

// drop counts a skipped frame. Unknown event types are expected from newer
// servers and log at debug; other drops log at warn.
func (d *Dispatcher) drop(msg string, f Frame, err error) {
	d.dropped++
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrUnknownEvent) {
		level = slog.LevelDebug
	}
	d.logger.Log(context.Background(), level, msg,
		"event", f.Event,
		"bytes", len(f.Data),
		"phase", d.machine.Phase().String(),
		"code", string(domain.ErrorCodeOf(err)),
		"error", err,
	)
}
