// Package observability carries the change notifications emitted by the
// session manager and the exchange pipeline. Renderers subscribe to them to
// know when to redraw; the log observer records them.
package observability

import (
	"context"
	"time"
)

// Level is the severity of an event.
type Level int

const (
	LevelVerbose Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the level name used in log output.
func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warn"
	default:
		return "error"
	}
}

// EventType identifies the kind of event, e.g. "session.state.changed".
type EventType string

// Event is a change notification emitted by a core component.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events from core components.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}
