// Package exchange drives the conversational exchange: it appends the user's
// turn, calls the chat endpoint with the session credential in effect at call
// time, and appends the reply or a fallback turn.
package exchange

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
	"github.com/zhouzirui/z-tavern/client/internal/observability"
	"github.com/zhouzirui/z-tavern/client/internal/remote"
	"github.com/zhouzirui/z-tavern/client/internal/session"
)

// FallbackReply replaces the reply of any failed exchange.
const FallbackReply = "Sorry, I encountered an error."

// Exchanger performs the remote chat call.
type Exchanger interface {
	SubmitChat(ctx context.Context, authz remote.Authorizer, message string) (string, error)
}

// Pipeline owns the append-only turn sequence and the awaiting-reply guard.
// At most one exchange is in flight at any time.
type Pipeline struct {
	exchanger Exchanger
	authz     remote.Authorizer
	fallback  string
	logger    zerolog.Logger
	notifier  *observability.Notifier

	mu         sync.Mutex
	turns      []chat.Turn
	input      string
	awaiting   bool
	generation uint64
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger.With().Str("component", "exchange").Logger()
	}
}

// WithObserver subscribes obs for the lifetime of the Pipeline.
func WithObserver(obs observability.Observer) Option {
	return func(p *Pipeline) { p.notifier.Subscribe(obs) }
}

// WithFallbackReply overrides FallbackReply.
func WithFallbackReply(text string) Option {
	return func(p *Pipeline) { p.fallback = text }
}

// New creates a Pipeline. authz is consulted on every call, normally the
// *session.Manager.
func New(exchanger Exchanger, authz remote.Authorizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		exchanger: exchanger,
		authz:     authz,
		fallback:  FallbackReply,
		logger:    zerolog.Nop(),
		notifier:  observability.NewNotifier("exchange"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetInput replaces the input buffer.
func (p *Pipeline) SetInput(ctx context.Context, text string) {
	p.mu.Lock()
	p.input = text
	p.mu.Unlock()
	p.notifier.Emit(ctx, EventInputChanged, observability.LevelVerbose, nil)
}

// Input returns the input buffer.
func (p *Pipeline) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// CanSubmit reports whether Submit would start an exchange now.
func (p *Pipeline) CanSubmit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.awaiting && strings.TrimSpace(p.input) != ""
}

// Submit sends the input buffer. See SubmitTurn.
func (p *Pipeline) Submit(ctx context.Context) bool {
	return p.SubmitTurn(ctx, p.Input())
}

// SubmitTurn runs one exchange for text and blocks until it settles. It
// returns false without side effects when text is blank or another exchange
// is in flight. Otherwise it appends the user turn, clears the input buffer,
// calls the exchanger and appends exactly one system turn: the reply, or the
// fallback reply if the call failed for any reason. The awaiting flag is
// cleared however the call ends.
func (p *Pipeline) SubmitTurn(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	p.mu.Lock()
	if p.awaiting {
		p.mu.Unlock()
		p.logger.Debug().Msg("submission ignored, reply pending")
		return false
	}
	userTurn := chat.NewTurn(chat.OriginUser, text)
	p.turns = append(p.turns, userTurn)
	count := len(p.turns)
	p.input = ""
	p.awaiting = true
	gen := p.generation
	p.mu.Unlock()

	p.emitAppended(ctx, userTurn, count)
	p.notifier.Emit(ctx, EventInputChanged, observability.LevelVerbose, nil)
	p.emitAwaiting(ctx, true)

	var reply *chat.Turn
	defer func() { p.settle(ctx, gen, reply) }()

	content, err := p.exchanger.SubmitChat(ctx, p.authz, text)
	if err != nil {
		p.logger.Warn().Err(err).Msg("exchange failed, using fallback reply")
		p.notifier.Emit(ctx, EventFailed, observability.LevelWarning, map[string]any{
			"error": err.Error(),
		})
		t := chat.NewTurn(chat.OriginSystem, p.fallback)
		t.Fallback = true
		reply = &t
		return true
	}

	t := chat.NewTurn(chat.OriginSystem, content)
	reply = &t
	return true
}

// settle appends reply unless the sequence was reset since the exchange
// started, and always clears the awaiting flag. reply is nil only when the
// exchanger panicked.
func (p *Pipeline) settle(ctx context.Context, gen uint64, reply *chat.Turn) {
	p.mu.Lock()
	appended := false
	if reply != nil && gen == p.generation {
		p.turns = append(p.turns, *reply)
		appended = true
	}
	count := len(p.turns)
	p.awaiting = false
	p.mu.Unlock()

	switch {
	case appended:
		p.emitAppended(ctx, *reply, count)
	case reply != nil:
		p.logger.Debug().Msg("reply discarded after reset")
		p.notifier.Emit(ctx, EventReplyDiscarded, observability.LevelVerbose, nil)
	}
	p.emitAwaiting(ctx, false)
}

// Reset clears the sequence and the input buffer. An exchange still in flight
// keeps the awaiting flag until it settles, and its reply is discarded.
func (p *Pipeline) Reset(ctx context.Context) {
	p.mu.Lock()
	p.turns = nil
	p.input = ""
	p.generation++
	p.mu.Unlock()
	p.notifier.Emit(ctx, EventReset, observability.LevelInfo, nil)
}

// OnEvent resets the pipeline when the session logs out, so a new session
// never sees the previous user's conversation.
func (p *Pipeline) OnEvent(ctx context.Context, event observability.Event) {
	if event.Type == session.EventLoggedOut {
		p.Reset(ctx)
	}
}

// Turns returns a copy of the sequence.
func (p *Pipeline) Turns() []chat.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chat.Turn, len(p.turns))
	copy(out, p.turns)
	return out
}

// AwaitingReply reports whether an exchange is in flight.
func (p *Pipeline) AwaitingReply() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awaiting
}

// Subscribe registers obs for exchange events.
func (p *Pipeline) Subscribe(obs observability.Observer) (unsubscribe func()) {
	return p.notifier.Subscribe(obs)
}

func (p *Pipeline) emitAppended(ctx context.Context, t chat.Turn, count int) {
	p.notifier.Emit(ctx, EventTurnAppended, observability.LevelVerbose, map[string]any{
		"turn_id":  t.ID,
		"origin":   string(t.Origin),
		"fallback": t.Fallback,
		"count":    count,
	})
}

func (p *Pipeline) emitAwaiting(ctx context.Context, awaiting bool) {
	p.notifier.Emit(ctx, EventAwaitingChanged, observability.LevelVerbose, map[string]any{
		"awaiting": awaiting,
	})
}
