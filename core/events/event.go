package events

import (
	"log/slog"
	"sync"
)

// Event represents a structured state change emitted by the engine.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter broadcasts events to downstream subscribers (e.g. audit log,
// indexers, webhook dispatchers).
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// LogEmitter writes every event to a structured logger.
type LogEmitter struct {
	Logger *slog.Logger
}

func (l LogEmitter) Emit(evt *Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for k, v := range evt.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.With(attrs...).Info(evt.Type)
}

// MemoryEmitter records emitted events in order. Primarily a test helper.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []*Event
}

func (m *MemoryEmitter) Emit(evt *Event) {
	if evt == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

// Events returns a snapshot of the events emitted so far.
func (m *MemoryEmitter) Events() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}
