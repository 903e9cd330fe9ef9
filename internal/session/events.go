package session

import "github.com/zhouzirui/z-tavern/client/internal/observability"

// Events emitted by the Manager.
const (
	EventStateChanged  observability.EventType = "session.state.changed"
	EventReady         observability.EventType = "session.ready"
	EventLoggedIn      observability.EventType = "session.logged_in"
	EventLoggedOut     observability.EventType = "session.logged_out"
	EventLoginFailed   observability.EventType = "session.login.failed"
	EventRestoreFailed observability.EventType = "session.restore.failed"
)
