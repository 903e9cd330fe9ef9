package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// LogObserver writes events to a zerolog.Logger. The event type becomes the
// message and Data keys become fields.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates a LogObserver that emits to logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnEvent(ctx context.Context, event Event) {
	lvl, err := zerolog.ParseLevel(event.Level.String())
	if err != nil {
		lvl = zerolog.ErrorLevel
	}

	o.logger.WithLevel(lvl).
		Str("source", event.Source).
		Time("at", event.Timestamp).
		Fields(event.Data).
		Msg(string(event.Type))
}
