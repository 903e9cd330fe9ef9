package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/z-tavern/client/internal/observability"
	"github.com/zhouzirui/z-tavern/client/internal/session"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

type navigateMsg struct{ view session.View }

type refreshMsg struct{}

// Relay forwards core notifications into the program. It is the session's
// Navigator and an Observer of both the session and the exchange pipeline.
//
// The core is built before the program, so the sender is attached late;
// messages raised before Attach are dropped.
type Relay struct {
	mu     sync.RWMutex
	sender Sender
}

// NewRelay returns a detached Relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Attach sets the program that receives forwarded messages.
func (r *Relay) Attach(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// Navigate implements session.Navigator.
func (r *Relay) Navigate(_ context.Context, view session.View) {
	r.send(navigateMsg{view: view})
}

// OnEvent implements observability.Observer.
func (r *Relay) OnEvent(_ context.Context, _ observability.Event) {
	r.send(refreshMsg{})
}

// send never blocks the caller: notifications may originate inside Update,
// where a synchronous Send would deadlock the event loop.
func (r *Relay) send(msg tea.Msg) {
	r.mu.RLock()
	s := r.sender
	r.mu.RUnlock()
	if s == nil {
		return
	}
	go s.Send(msg)
}
