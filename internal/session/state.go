package session

// State is the position of the Manager in its credential lifecycle.
type State string

const (
	StateNoCredential    State = "no_credential"
	StateRestoring       State = "restoring"
	StateVerifying       State = "verifying"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Readiness reports whether initialization has settled. Renderers must not
// draw session-dependent views before ReadinessResolved.
type Readiness int

const (
	ReadinessUnresolved Readiness = iota
	ReadinessResolving
	ReadinessResolved
)

func (r Readiness) String() string {
	switch r {
	case ReadinessUnresolved:
		return "unresolved"
	case ReadinessResolving:
		return "resolving"
	case ReadinessResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// View names a landing view of the surrounding application.
type View string

const (
	ViewAuthenticatedLanding   View = "authenticated-landing"
	ViewUnauthenticatedLanding View = "unauthenticated-landing"
)
