package exchange

import "github.com/zhouzirui/z-tavern/client/internal/observability"

// Events emitted by the Pipeline. EventTurnAppended and EventReset are the
// "sequence changed" notifications renderers react to.
const (
	EventTurnAppended    observability.EventType = "exchange.turn.appended"
	EventAwaitingChanged observability.EventType = "exchange.awaiting.changed"
	EventInputChanged    observability.EventType = "exchange.input.changed"
	EventFailed          observability.EventType = "exchange.failed"
	EventReplyDiscarded  observability.EventType = "exchange.reply.discarded"
	EventReset           observability.EventType = "exchange.reset"
)
