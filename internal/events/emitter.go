package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter is a simple implementation of the EventEmitter interface
// that stores registered handlers in memory and dispatches events to them.
// Handlers are called synchronously, in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger, handlers ...EventHandler) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		handlers: append(make([]EventHandler, 0, len(handlers)), handlers...),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// If any handler returns an error, the event will still be sent to all other handlers,
// and the first error encountered will be returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *Event) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.ErrorContext(ctx, "handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Publish emits an event and logs, rather than returns, a failure. Pipelines
// use it so that a broken observer never fails a run. A nil emitter is allowed.
func Publish(ctx context.Context, emitter EventEmitter, logger *slog.Logger, event *Event) {
	if emitter == nil {
		return
	}
	if err := emitter.EmitEvent(ctx, event); err != nil && logger != nil {
		logger.DebugContext(ctx, "event observer failed",
			"event_type", event.Type,
			"error", err)
	}
}

// stageRange is the share of overall run progress owned by one stage.
type stageRange struct {
	from, to float64
}

// scaledEmitter maps stage-local progress onto the overall run progress.
type scaledEmitter struct {
	next  EventEmitter
	stage string
	r     stageRange
}

// Scaled returns an emitter that rewrites progress events so that a stage
// reporting 0..1 moves overall progress from..to. Other events pass through.
func Scaled(next EventEmitter, stage string, from, to float64) EventEmitter {
	return &scaledEmitter{next: next, stage: stage, r: stageRange{from: from, to: to}}
}

func (s *scaledEmitter) EmitEvent(ctx context.Context, event *Event) error {
	if s.next == nil {
		return nil
	}
	if event.Type != TypeProgress {
		return s.next.EmitEvent(ctx, event)
	}
	scaled := *event
	scaled.Stage = s.stage
	scaled.Progress = s.r.from + clamp(event.Progress)*(s.r.to-s.r.from)
	return s.next.EmitEvent(ctx, &scaled)
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
