package stream

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/domain"
)

type recordingObserver struct {
	transitions []domain.Transition
}

func (r *recordingObserver) OnTransition(tr domain.Transition) {
	r.transitions = append(r.transitions, tr)
}

func (r *recordingObserver) types() []domain.EventType {
	out := make([]domain.EventType, 0, len(r.transitions))
	for _, tr := range r.transitions {
		out = append(out, tr.Event.Type())
	}
	return out
}

func TestDecodeFrame_EventNameWins(t *testing.T) {
	ev, err := DecodeFrame(Frame{Event: "research_complete", Data: []byte(`{"type":"start","sourceCount":3}`)})
	require.NoError(t, err)
	rc, ok := ev.(domain.ResearchCompleteEvent)
	require.True(t, ok)
	assert.Equal(t, 3, rc.SourceCount)
}

func TestDecodeFrame_TypeFieldFallback(t *testing.T) {
	ev, err := DecodeFrame(Frame{Data: []byte(`{"type":"slide_start","message":"Generating slides..."}`)})
	require.NoError(t, err)
	assert.Equal(t, domain.EventSlideStart, ev.Type())

	ev, err = DecodeFrame(Frame{Event: "message", Data: []byte(`{"type":"outline_start"}`)})
	require.NoError(t, err)
	assert.Equal(t, domain.EventOutlineStart, ev.Type())
}

func TestDecodeFrame_Errors(t *testing.T) {
	_, err := DecodeFrame(Frame{Data: []byte(`{oops`)})
	assert.True(t, errors.Is(err, domain.ErrMalformedFrame))

	_, err = DecodeFrame(Frame{Event: "complete", Data: []byte(`{"presentation":`)})
	assert.True(t, errors.Is(err, domain.ErrMalformedFrame))

	_, err = DecodeFrame(Frame{Data: []byte(`{"message":"no type"}`)})
	assert.True(t, errors.Is(err, domain.ErrUnknownEvent))

	_, err = DecodeFrame(Frame{Event: "warning", Data: []byte(`{"message":"capped"}`)})
	assert.True(t, errors.Is(err, domain.ErrUnknownEvent))

	_, err = DecodeFrame(Frame{})
	assert.True(t, errors.Is(err, domain.ErrMalformedFrame))
}

func TestDispatcher_FaultIsolation(t *testing.T) {
	obs := &recordingObserver{}
	m := NewMachine()
	d := NewDispatcher(m, newTestLogger(), obs)

	frames := []Frame{
		{Event: "start", Data: []byte(`{}`)},
		{Event: "research_start", Data: []byte(`{not json`)},
		{Data: []byte(`{"type":"research_start"}`)},
		{Event: "warning", Data: []byte(`{"message":"ignored"}`)},
		{Event: "research_source", Data: []byte(`{"url":"https://a","title":"A"}`)},
		{Data: []byte(`garbage`)},
		{Event: "research_complete", Data: []byte(`{"sourceCount":1}`)},
	}
	var accepted int
	for _, f := range frames {
		tr, err := d.Dispatch(f)
		require.NoError(t, err)
		if tr != nil {
			accepted++
		}
	}

	assert.Equal(t, 4, accepted)
	assert.Equal(t, 3, d.Dropped())
	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventResearchStart,
		domain.EventResearchSource,
		domain.EventResearchComplete,
	}, obs.types())
	assert.True(t, m.ResearchDone())
}

func TestDispatcher_DropsOutOfOrder(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(NewMachine(), newTestLogger())
	d.Subscribe(obs)

	tr, err := d.Dispatch(Frame{Event: "slide_start"})
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, domain.PhaseGenerating, tr.To)

	tr, err = d.Dispatch(Frame{Event: "research_start", Data: []byte(`{}`)})
	assert.NoError(t, err)
	assert.Nil(t, tr)
	assert.Equal(t, 1, d.Dropped())
	assert.Len(t, obs.transitions, 1)
}

func TestDispatcher_DropLogLevels(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		level string
	}{
		{"unknown event", Frame{Event: "warning", Data: []byte(`{"message":"capped"}`)}, "level=DEBUG"},
		{"malformed json", Frame{Data: []byte(`{broken`)}, "level=WARN"},
		{"out of order", Frame{Event: "research_start", Data: []byte(`{}`)}, "level=WARN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			d := NewDispatcher(NewMachine(), logger)
			_, err := d.Dispatch(Frame{Event: "slide_start"})
			require.NoError(t, err)
			buf.Reset()

			tr, err := d.Dispatch(tt.frame)
			require.NoError(t, err)
			assert.Nil(t, tr)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, 1)
			assert.Contains(t, lines[0], tt.level)
		})
	}
}

func TestDispatcher_ErrorEvent(t *testing.T) {
	obs := &recordingObserver{}
	m := NewMachine()
	d := NewDispatcher(m, newTestLogger(), obs)

	tr, err := d.Dispatch(Frame{Event: "error", Data: []byte(`{"message":"quota exceeded"}`)})
	require.Error(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "quota exceeded", err.Error())
	assert.Equal(t, domain.KindProtocol, domain.KindOf(err))
	assert.Equal(t, domain.PhaseError, tr.To)
	require.Len(t, obs.transitions, 1)

	tr, err = d.Dispatch(Frame{Event: "complete", Data: []byte(`{"presentation":{"id":"p1"}}`)})
	assert.Nil(t, tr)
	assert.True(t, errors.Is(err, domain.ErrSessionClosed))
	assert.Len(t, obs.transitions, 1)
}

func TestDispatcher_CompleteWithoutID(t *testing.T) {
	d := NewDispatcher(NewMachine(), newTestLogger())
	tr, err := d.Dispatch(Frame{Event: "complete", Data: []byte(`{"message":"saved"}`)})
	require.Error(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "generation incomplete", err.Error())
	assert.True(t, errors.Is(err, domain.ErrGenerationIncomplete))
}

func TestObserverFunc(t *testing.T) {
	var got []int
	d := NewDispatcher(NewMachine(), newTestLogger(), ObserverFunc(func(tr domain.Transition) {
		got = append(got, tr.Seq)
	}))
	_, _ = d.Dispatch(Frame{Event: "start"})
	_, _ = d.Dispatch(Frame{Event: "outline_start"})
	assert.Equal(t, []int{1, 2}, got)
}
