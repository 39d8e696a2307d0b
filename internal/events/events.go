package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies what an Event reports.
type Type string

// Event types emitted during a run.
const (
	// TypeProgress carries a fraction in [0, 1].
	TypeProgress Type = "progress"
	// TypeLog carries a human-readable message.
	TypeLog Type = "log"
	// TypeStage announces that the run entered a new stage.
	TypeStage Type = "stage"
	// TypeSectionCompleted carries the final text of one section.
	TypeSectionCompleted Type = "section_completed"
	// TypeImageCompleted reports the outcome of illustrating one section.
	TypeImageCompleted Type = "image_completed"
)

// Stage names, in the order a run passes through them.
const (
	StageOutline = "outline"
	StageArticle = "article"
	StageCombine = "combine"
	StageImage   = "image"
	StagePackage = "package"
	StageDone    = "done"
)

// Log levels carried by TypeLog events.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Event is a progress or log notification flowing from a pipeline stage to
// whoever observes the run. Only the fields relevant to Type are set.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	Level     string    `json:"level,omitempty"`
	Message   string    `json:"message,omitempty"`
	Index     int       `json:"index"`
	Heading   string    `json:"heading,omitempty"`
	Content   string    `json:"content,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newEvent(t Type) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      t,
		CreatedAt: time.Now(),
	}
}

// NewProgressEvent reports a completion fraction for a stage.
func NewProgressEvent(stage string, progress float64) *Event {
	e := newEvent(TypeProgress)
	e.Stage = stage
	e.Progress = progress
	return e
}

// NewLogEvent reports a message at the given level.
func NewLogEvent(level, message string) *Event {
	e := newEvent(TypeLog)
	e.Level = level
	e.Message = message
	return e
}

// NewStageEvent announces a stage transition.
func NewStageEvent(stage, message string) *Event {
	e := newEvent(TypeStage)
	e.Stage = stage
	e.Message = message
	return e
}

// NewSectionCompletedEvent carries a finished section for incremental display.
func NewSectionCompletedEvent(index int, heading, content string, degraded bool) *Event {
	e := newEvent(TypeSectionCompleted)
	e.Stage = StageArticle
	e.Index = index
	e.Heading = heading
	e.Content = content
	e.Degraded = degraded
	return e
}

// NewImageCompletedEvent reports the outcome of one illustration. An empty
// path means the section has no image.
func NewImageCompletedEvent(index int, path string) *Event {
	e := newEvent(TypeImageCompleted)
	e.Stage = StageImage
	e.Index = index
	e.Path = path
	return e
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// Pipelines publish through it without knowing who observes the run.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
