package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventType names one event of the generation stream.
type EventType string

const (
	EventStart            EventType = "start"
	EventResearchStart    EventType = "research_start"
	EventResearchSource   EventType = "research_source"
	EventResearchComplete EventType = "research_complete"
	EventResearchError    EventType = "research_error"
	EventOutlineStart     EventType = "outline_start"
	EventOutlineComplete  EventType = "outline_complete"
	EventSlideStart       EventType = "slide_start"
	EventSlideGenerated   EventType = "slide_generated"
	EventSlidesComplete   EventType = "slides_complete"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"

	// EventWarning is emitted by the server only. Clients do not know it
	// and skip it like any other unknown type.
	EventWarning EventType = "warning"
)

var knownEventTypes = map[EventType]struct{}{
	EventStart:            {},
	EventResearchStart:    {},
	EventResearchSource:   {},
	EventResearchComplete: {},
	EventResearchError:    {},
	EventOutlineStart:     {},
	EventOutlineComplete:  {},
	EventSlideStart:       {},
	EventSlideGenerated:   {},
	EventSlidesComplete:   {},
	EventComplete:         {},
	EventError:            {},
}

// KnownEventType reports whether name is one of the event types a client
// understands.
func KnownEventType(name string) bool {
	_, ok := knownEventTypes[EventType(name)]
	return ok
}

// StreamEvent is a sealed interface over the typed stream events.
// The unexported marker method prevents external implementations.
type StreamEvent interface {
	Type() EventType
	streamEvent()
}

// Source is one web research hit.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// OutlineItem is one planned slide in an outline.
type OutlineItem struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"keyPoints,omitempty"`
}

// Outline is the deck plan produced before slides are generated.
type Outline struct {
	Title      string        `json:"title"`
	Summary    string        `json:"summary,omitempty"`
	SlideCount int           `json:"slideCount,omitempty"`
	Slides     []OutlineItem `json:"slides"`
}

// Slide is one generated slide.
type Slide struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Layout       string `json:"layout,omitempty"`
	DesignNotes  string `json:"designNotes,omitempty"`
	SpeakerNotes string `json:"speakerNotes,omitempty"`
}

// PresentationRef identifies a saved presentation in a complete event.
type PresentationRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SlideCount int    `json:"slideCount"`
}

// SourceRef is the short source form listed in a complete event.
type SourceRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// StartEvent opens a generation stream.
type StartEvent struct {
	Message string `json:"message,omitempty"`
}

// ResearchStartEvent begins the research phase.
type ResearchStartEvent struct {
	Message string `json:"message,omitempty"`
}

// ResearchSourceEvent carries one research source. Fields are flat on the wire.
type ResearchSourceEvent struct {
	Source
}

// ResearchCompleteEvent ends research successfully.
type ResearchCompleteEvent struct {
	Message     string `json:"message,omitempty"`
	SourceCount int    `json:"sourceCount"`
}

// ResearchErrorEvent ends research without results. Generation continues.
type ResearchErrorEvent struct {
	Message string `json:"message,omitempty"`
}

// OutlineStartEvent begins the outline phase.
type OutlineStartEvent struct {
	Message string `json:"message,omitempty"`
}

// OutlineCompleteEvent carries the finished outline.
type OutlineCompleteEvent struct {
	Message string  `json:"message,omitempty"`
	Outline Outline `json:"outline"`
}

// SlideStartEvent begins slide generation.
type SlideStartEvent struct {
	Message string `json:"message,omitempty"`
}

// SlideGeneratedEvent carries one slide. Progress is a 0-100 percentage;
// zero means the server did not send one.
type SlideGeneratedEvent struct {
	SlideNumber int     `json:"slideNumber"`
	TotalSlides int     `json:"totalSlides"`
	Slide       Slide   `json:"slide"`
	Progress    float64 `json:"progress,omitempty"`
}

// SlidesCompleteEvent reports that every slide has been generated.
type SlidesCompleteEvent struct {
	Message    string `json:"message,omitempty"`
	SlideCount int    `json:"slideCount"`
}

// CompleteEvent ends the stream successfully. Presentation must carry a
// non-empty ID for the completion to count.
type CompleteEvent struct {
	Message      string           `json:"message,omitempty"`
	Presentation *PresentationRef `json:"presentation,omitempty"`
	Sources      []SourceRef      `json:"sources,omitempty"`
}

// PresentationID returns the completion's result id, or "" when absent.
func (e CompleteEvent) PresentationID() string {
	if e.Presentation == nil {
		return ""
	}
	return e.Presentation.ID
}

// ErrorEvent ends the stream with a server-supplied message.
type ErrorEvent struct {
	Message string `json:"message"`
}

// WarningEvent is a server-side notice. See EventWarning.
type WarningEvent struct {
	Message string `json:"message"`
}

func (StartEvent) Type() EventType            { return EventStart }
func (ResearchStartEvent) Type() EventType    { return EventResearchStart }
func (ResearchSourceEvent) Type() EventType   { return EventResearchSource }
func (ResearchCompleteEvent) Type() EventType { return EventResearchComplete }
func (ResearchErrorEvent) Type() EventType    { return EventResearchError }
func (OutlineStartEvent) Type() EventType     { return EventOutlineStart }
func (OutlineCompleteEvent) Type() EventType  { return EventOutlineComplete }
func (SlideStartEvent) Type() EventType       { return EventSlideStart }
func (SlideGeneratedEvent) Type() EventType   { return EventSlideGenerated }
func (SlidesCompleteEvent) Type() EventType   { return EventSlidesComplete }
func (CompleteEvent) Type() EventType         { return EventComplete }
func (ErrorEvent) Type() EventType            { return EventError }
func (WarningEvent) Type() EventType          { return EventWarning }

func (StartEvent) streamEvent()            {}
func (ResearchStartEvent) streamEvent()    {}
func (ResearchSourceEvent) streamEvent()   {}
func (ResearchCompleteEvent) streamEvent() {}
func (ResearchErrorEvent) streamEvent()    {}
func (OutlineStartEvent) streamEvent()     {}
func (OutlineCompleteEvent) streamEvent()  {}
func (SlideStartEvent) streamEvent()       {}
func (SlideGeneratedEvent) streamEvent()   {}
func (SlidesCompleteEvent) streamEvent()   {}
func (CompleteEvent) streamEvent()         {}
func (ErrorEvent) streamEvent()            {}
func (WarningEvent) streamEvent()          {}

// Interface compliance checks.
var (
	_ StreamEvent = StartEvent{}
	_ StreamEvent = ResearchStartEvent{}
	_ StreamEvent = ResearchSourceEvent{}
	_ StreamEvent = ResearchCompleteEvent{}
	_ StreamEvent = ResearchErrorEvent{}
	_ StreamEvent = OutlineStartEvent{}
	_ StreamEvent = OutlineCompleteEvent{}
	_ StreamEvent = SlideStartEvent{}
	_ StreamEvent = SlideGeneratedEvent{}
	_ StreamEvent = SlidesCompleteEvent{}
	_ StreamEvent = CompleteEvent{}
	_ StreamEvent = ErrorEvent{}
	_ StreamEvent = WarningEvent{}
)

// UnmarshalEvent decodes payload into the variant named by t. An empty
// payload decodes as an empty object. Unknown types return ErrUnknownEvent;
// invalid JSON returns ErrMalformedFrame.
func UnmarshalEvent(t EventType, payload []byte) (StreamEvent, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}
	switch t {
	case EventStart:
		return decodeAs[StartEvent](payload)
	case EventResearchStart:
		return decodeAs[ResearchStartEvent](payload)
	case EventResearchSource:
		return decodeAs[ResearchSourceEvent](payload)
	case EventResearchComplete:
		return decodeAs[ResearchCompleteEvent](payload)
	case EventResearchError:
		return decodeAs[ResearchErrorEvent](payload)
	case EventOutlineStart:
		return decodeAs[OutlineStartEvent](payload)
	case EventOutlineComplete:
		return decodeAs[OutlineCompleteEvent](payload)
	case EventSlideStart:
		return decodeAs[SlideStartEvent](payload)
	case EventSlideGenerated:
		return decodeAs[SlideGeneratedEvent](payload)
	case EventSlidesComplete:
		return decodeAs[SlidesCompleteEvent](payload)
	case EventComplete:
		return decodeAs[CompleteEvent](payload)
	case EventError:
		return decodeAs[ErrorEvent](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
}

func decodeAs[T StreamEvent](payload []byte) (StreamEvent, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return ev, nil
}

// MarshalEvent encodes ev as a JSON object carrying a "type" field followed
// by the variant's own fields.
func MarshalEvent(ev StreamEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Type(), err)
	}
	typ, err := json.Marshal(string(ev.Type()))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typ) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
