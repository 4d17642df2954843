package arenawatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/pacer"
	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/streaming"
	"github.com/youssefsiam38/arenawatch/types"
)

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	// Context is handed to hooks. Default: context.Background()
	Context context.Context

	// Registry maps game types to renderers. Default: DefaultRegistry()
	Registry *render.Registry

	// Identities resolves agent names and colours. Nil shows every agent
	// with the fallback colour.
	Identities render.Identities

	// Container receives the drawing. Default: a new container
	Container *render.Container

	// Clock drives pacing and reconnect timers. Its callbacks must run on
	// the goroutine that owns the session. Default: pacer.RealClock()
	Clock pacer.Clock

	MinDelay          time.Duration
	ReconnectCooldown time.Duration

	Hooks   *hooks.Registry
	Logger  Logger
	Metrics *Metrics

	// Dial opens a connection for the selector. Messages from it must be
	// handed back with the same generation.
	Dial func(gen uint64, sel types.Selector)

	// Hangup closes the connection of the given generation.
	Hangup func(gen uint64)

	// OnError receives errors that do not stop the session.
	OnError func(err error)
}

func (c *SessionConfig) applyDefaults() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Registry == nil {
		c.Registry = DefaultRegistry()
	}
	if c.Identities == nil {
		c.Identities = fallbackIdentities{}
	}
	if c.Container == nil {
		c.Container = render.NewContainer()
	}
	if c.Clock == nil {
		c.Clock = pacer.RealClock()
	}
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.ReconnectCooldown <= 0 {
		c.ReconnectCooldown = DefaultReconnectCooldown
	}
	if c.Hooks == nil {
		c.Hooks = hooks.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	if c.Dial == nil {
		c.Dial = func(uint64, types.Selector) {}
	}
	if c.Hangup == nil {
		c.Hangup = func(uint64) {}
	}
}

// fallbackIdentities knows no agent.
type fallbackIdentities struct{}

func (fallbackIdentities) ColourOf(types.AgentID) string       { return render.FallbackColour }
func (fallbackIdentities) NameOf(types.AgentID) (string, bool) { return "", false }

// Session is the spectator pipeline for one stream at a time: it classifies
// envelopes, queues deltas, paces them into the active renderer and
// schedules reconnects.
//
// A Session is not safe for concurrent use. Every method, and every clock
// callback, must run on the same goroutine.
type Session struct {
	config *SessionConfig
	pacer  *pacer.Pacer

	state    runstate.SessionState
	gen      uint64
	selector types.Selector

	renderer    render.Renderer
	match       *hooks.MatchInfo
	updates     int
	endReceived bool

	reconnect pacer.Timer
}

// NewSession creates an idle session.
func NewSession(config *SessionConfig) *Session {
	if config == nil {
		config = &SessionConfig{}
	}
	config.applyDefaults()

	s := &Session{
		config:   config,
		state:    runstate.SessionStateIdle,
		selector: types.AnyMatch(),
	}
	s.pacer = pacer.New(config.Clock, s, &pacer.Config{
		MinDelay: config.MinDelay,
		OnError:  s.reportError,
	})
	return s
}

// Connect closes the current connection, if any, and opens a new one for
// sel. Messages from earlier connections are ignored from now on.
func (s *Session) Connect(sel types.Selector) error {
	if s.state == runstate.SessionStateClosed {
		return ErrSessionClosed
	}

	s.config.Hangup(s.gen)
	s.gen++
	s.selector = sel
	s.endReceived = false
	s.cancelReconnect()
	s.pacer.Reset()
	s.config.Metrics.queueDepth(0)

	s.setState(runstate.SessionStateConnecting)
	s.config.Logger.Debug("connecting", "selector", sel.String(), "generation", s.gen)
	s.config.Dial(s.gen, sel)
	return nil
}

// HandlePayload decodes one stream message from connection gen and acts on
// it. Undecodable payloads are reported and dropped.
func (s *Session) HandlePayload(gen uint64, payload []byte) error {
	if !s.current(gen) {
		return nil
	}

	env, err := streaming.Decode(payload)
	if err != nil {
		s.config.Metrics.decodeError()
		s.config.Logger.Warn("dropping undecodable payload", "error", err, "bytes", len(payload))
		if hookErr := s.config.Hooks.TriggerDecodeError(s.config.Context, payload, err); hookErr != nil {
			s.reportError(NewSpectatorError("DecodeErrorHook", hookErr))
		}
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return s.HandleEnvelope(gen, env)
}

// HandleEnvelope acts on one decoded envelope from connection gen.
func (s *Session) HandleEnvelope(gen uint64, env *streaming.Envelope) error {
	if !s.current(gen) {
		return nil
	}
	s.config.Metrics.envelope(string(env.Kind))

	// The connection was hung up at the end; whatever its reader had
	// already posted belongs to no match.
	if s.endReceived {
		s.config.Logger.Debug("ignoring envelope after end", "kind", string(env.Kind))
		return nil
	}

	switch {
	case env.Kind == streaming.KindConnect:
		return s.startMatch(env.Connect)

	case env.Kind.IsUpdate():
		if s.renderer == nil {
			s.config.Logger.Debug("ignoring update outside a match")
			return nil
		}
		s.enqueue(pacer.Entry{Kind: pacer.EntryUpdate, Data: env.Delta})

	case env.Kind == streaming.KindEnd:
		// The server keeps the stream open after the end; the next match
		// comes from a fresh connection.
		s.endReceived = true
		s.config.Hangup(gen)
		s.enqueue(pacer.Entry{Kind: pacer.EntryEnd, Data: env.Summary})
	}
	return nil
}

// HandleDisconnect reports that connection gen closed. A drop before the
// match ended schedules a reconnect.
func (s *Session) HandleDisconnect(gen uint64, err error) {
	if !s.current(gen) || s.endReceived {
		return
	}

	reason := ReasonStreamDropped
	if s.state == runstate.SessionStateConnecting {
		reason = ReasonDialFailed
	}
	if err != nil {
		s.config.Logger.Warn("stream closed", "reason", reason, "error", err)
	}
	s.scheduleReconnect(reason)
}

// Close stops pacing, cancels any pending reconnect and hangs up.
func (s *Session) Close() {
	if s.state == runstate.SessionStateClosed {
		return
	}
	s.config.Hangup(s.gen)
	s.gen++
	s.cancelReconnect()
	s.pacer.Stop()
	s.setState(runstate.SessionStateClosed)
}

// State returns the session state.
func (s *Session) State() runstate.SessionState { return s.state }

// Generation returns the current connection generation.
func (s *Session) Generation() uint64 { return s.gen }

// Selector returns the selector of the current connection.
func (s *Session) Selector() types.Selector { return s.selector }

// Container returns the container the session draws into.
func (s *Session) Container() *render.Container { return s.config.Container }

// QueueLen returns the number of entries waiting for release.
func (s *Session) QueueLen() int { return s.pacer.Len() }

// Draining reports whether entries are queued or a release is scheduled.
func (s *Session) Draining() bool { return s.pacer.Len() > 0 || s.pacer.Pending() }

// ReconnectPending reports whether a reconnect is scheduled.
func (s *Session) ReconnectPending() bool { return s.reconnect != nil }

// Match returns the current match, or nil.
func (s *Session) Match() *hooks.MatchInfo {
	if s.match == nil {
		return nil
	}
	m := *s.match
	return &m
}

// ShouldWait implements pacer.Dispatcher.
func (s *Session) ShouldWait(e pacer.Entry) bool {
	if s.renderer == nil {
		return true
	}
	return s.renderer.ShouldWaitForUpdate(e.Data)
}

// Dispatch implements pacer.Dispatcher.
func (s *Session) Dispatch(e pacer.Entry) error {
	s.config.Metrics.queueDepth(s.pacer.Len())

	switch e.Kind {
	case pacer.EntryUpdate:
		return s.dispatchUpdate(e)
	case pacer.EntryEnd:
		return s.dispatchEnd(e)
	default:
		return fmt.Errorf("unknown queue entry kind %q", e.Kind)
	}
}

func (s *Session) dispatchUpdate(e pacer.Entry) error {
	if s.renderer == nil {
		return nil
	}

	err := s.renderer.UpdateGame(s.config.Container, e.Data)
	s.config.Metrics.dispatch(string(e.Kind), err)
	if err != nil {
		// The match carries on; the next delta may well render.
		return NewMatchError("UpdateGame", s.matchID(), fmt.Errorf("%w: %w", ErrRender, err))
	}

	s.updates++
	if err := s.config.Hooks.TriggerUpdate(s.config.Context, hooks.UpdateEvent{
		MatchID:  s.matchID(),
		Seq:      s.updates,
		Delta:    e.Data,
		Replayed: e.Replayed,
	}); err != nil {
		s.reportError(NewMatchError("UpdateHook", s.matchID(), err))
	}
	return nil
}

func (s *Session) dispatchEnd(e pacer.Entry) error {
	var renderErr error
	if s.renderer != nil {
		if err := s.renderer.EndGame(s.config.Container, e.Data); err != nil {
			renderErr = NewMatchError("EndGame", s.matchID(), fmt.Errorf("%w: %w", ErrRender, err))
		}
		s.setState(runstate.SessionStateEnded)
	}
	s.config.Metrics.dispatch(string(e.Kind), renderErr)

	if s.match != nil {
		if err := s.config.Hooks.TriggerEnd(s.config.Context, hooks.EndEvent{
			MatchID: s.matchID(),
			Summary: e.Data,
			Updates: s.updates,
		}); err != nil {
			s.reportError(NewMatchError("EndHook", s.matchID(), err))
		}
	}

	s.scheduleReconnect(ReasonMatchEnded)
	return renderErr
}

func (s *Session) startMatch(data *streaming.ConnectData) error {
	s.config.Container.Clear()
	s.pacer.Reset()
	s.renderer = nil
	s.match = nil
	s.updates = 0

	r, err := s.config.Registry.New(data.GameType, render.Deps{Identities: s.config.Identities})
	if err != nil {
		s.config.Container.Append(render.ErrorElement("Unknown game type " + data.GameType))
		s.setState(runstate.SessionStateFailed)
		spErr := NewSpectatorError("Connect", err).WithContext("game_type", data.GameType)
		s.reportError(spErr)
		return spErr
	}

	if err := r.StartGame(s.config.Container, data.Players); err != nil {
		s.config.Container.Append(render.ErrorElement("Could not start " + data.GameType))
		s.setState(runstate.SessionStateFailed)
		spErr := NewSpectatorError("StartGame", fmt.Errorf("%w: %w", ErrRender, err)).
			WithContext("game_type", data.GameType)
		s.reportError(spErr)
		return spErr
	}

	s.renderer = r
	s.match = &hooks.MatchInfo{
		MatchID:     uuid.New(),
		GameType:    data.GameType,
		Players:     append([]types.AgentID(nil), data.Players...),
		Selector:    s.selector,
		HistoryLen:  len(data.History),
		ConnectedAt: s.config.Clock.Now(),
	}
	s.config.Metrics.match(data.GameType)
	s.config.Logger.Info("match connected",
		"match_id", s.match.MatchID, "game_type", data.GameType, "history", len(data.History))

	// Observers see the match before its first delta.
	if err := s.config.Hooks.TriggerConnect(s.config.Context, *s.match); err != nil {
		s.reportError(NewMatchError("ConnectHook", s.match.MatchID, err))
	}

	for _, delta := range data.History {
		s.enqueue(pacer.Entry{Kind: pacer.EntryUpdate, Data: delta, Replayed: true})
	}
	s.setState(runstate.SessionStateLive)
	return nil
}

func (s *Session) enqueue(e pacer.Entry) {
	s.pacer.Enqueue(e)
	s.config.Metrics.queueDepth(s.pacer.Len())
}

// scheduleReconnect arms the single reconnect timer. It is a no-op while a
// reconnect is already pending.
func (s *Session) scheduleReconnect(reason string) {
	if s.reconnect != nil || s.state == runstate.SessionStateClosed {
		return
	}

	sel, gen, delay := s.selector, s.gen, s.config.ReconnectCooldown
	s.config.Metrics.reconnect(reason)
	s.config.Logger.Info("reconnect scheduled", "selector", sel.String(), "delay", delay, "reason", reason)
	if err := s.config.Hooks.TriggerReconnect(s.config.Context, hooks.ReconnectEvent{
		Selector: sel,
		Delay:    delay,
		Reason:   reason,
	}); err != nil {
		s.reportError(NewSpectatorError("ReconnectHook", err))
	}

	s.setState(runstate.SessionStateCoolingDown)
	s.reconnect = s.config.Clock.AfterFunc(delay, func() {
		if gen != s.gen || s.state == runstate.SessionStateClosed {
			return
		}
		s.reconnect = nil
		_ = s.Connect(sel)
	})
}

func (s *Session) cancelReconnect() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

func (s *Session) setState(to runstate.SessionState) {
	if s.state == to {
		return
	}
	t := runstate.Transition{From: s.state, To: to}
	if err := t.Validate(); err != nil {
		s.config.Logger.Debug("ignoring state change", "from", s.state, "to", to)
		return
	}
	s.state = to
}

func (s *Session) current(gen uint64) bool {
	return gen == s.gen && s.state != runstate.SessionStateClosed
}

func (s *Session) matchID() uuid.UUID {
	if s.match == nil {
		return uuid.Nil
	}
	return s.match.MatchID
}

func (s *Session) reportError(err error) {
	if err == nil || errors.Is(err, pacer.ErrStopped) {
		return
	}
	s.config.Logger.Error("spectator error", "error", err)
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
