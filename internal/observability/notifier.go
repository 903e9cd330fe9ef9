package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Notifier fans events out to a changing set of subscribers. Observers are
// invoked synchronously in subscription order on the emitting goroutine.
type Notifier struct {
	source string

	mu        sync.RWMutex
	next      int
	observers map[int]Observer
}

// NewNotifier creates a Notifier stamping events with source. Non-nil
// observers are subscribed permanently.
func NewNotifier(source string, observers ...Observer) *Notifier {
	n := &Notifier{
		source:    source,
		observers: make(map[int]Observer),
	}
	for _, obs := range observers {
		if obs != nil {
			n.Subscribe(obs)
		}
	}
	return n
}

// Subscribe registers obs and returns a function that removes it. The
// returned function is safe to call more than once.
func (n *Notifier) Subscribe(obs Observer) (unsubscribe func()) {
	if obs == nil {
		return func() {}
	}

	n.mu.Lock()
	id := n.next
	n.next++
	n.observers[id] = obs
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.observers, id)
			n.mu.Unlock()
		})
	}
}

// Emit delivers an event to every current subscriber. Callers must not hold
// locks that subscribers may need.
func (n *Notifier) Emit(ctx context.Context, typ EventType, level Level, data map[string]any) {
	event := Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now().UTC(),
		Source:    n.source,
		Data:      data,
	}

	for _, obs := range n.snapshot() {
		obs.OnEvent(ctx, event)
	}
}

func (n *Notifier) snapshot() []Observer {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids := make([]int, 0, len(n.observers))
	for id := range n.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, n.observers[id])
	}
	return out
}
