package arenawatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/pacer"
	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/transport"
	"github.com/youssefsiam38/arenawatch/types"
)

// Spectator watches matches from a stream and keeps a rendered view of the
// current one.
//
// All session work runs on one loop goroutine. Stream readers and timers
// post to the loop's inbox; public methods may be called from any
// goroutine.
//
// Example:
//
//	cache := lookup.New(lookup.NewAPIClient(baseURL, nil), nil)
//	spec, err := arenawatch.NewSpectator(transport.NewSSE(baseURL, nil), nil,
//	    arenawatch.WithIdentities(cache),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := spec.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer spec.Stop(ctx)
//
//	_ = spec.Connect(types.WithPlayer(42))
type Spectator struct {
	dialer     transport.Dialer
	config     *SpectatorConfig
	opts       *spectatorOptions
	instanceID uuid.UUID

	// Loop-owned.
	session *Session
	conns   map[uint64]context.CancelFunc

	inbox   chan func()
	done    chan struct{}
	readers sync.WaitGroup

	state   atomic.Value // runstate.SessionState
	version atomic.Uint64

	// State
	started atomic.Bool

	// Cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSpectator creates a spectator that opens connections with dialer.
func NewSpectator(dialer transport.Dialer, config *SpectatorConfig, opts ...Option) (*Spectator, error) {
	if dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	}

	if config == nil {
		config = DefaultSpectatorConfig()
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := newSpectatorOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	s := &Spectator{
		dialer:     dialer,
		config:     config,
		opts:       o,
		instanceID: uuid.New(),
	}
	s.state.Store(runstate.SessionStateIdle)
	return s, nil
}

// Start launches the spectator loop. It does not connect; call Connect.
func (s *Spectator) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.inbox = make(chan func(), s.config.InboxSize)
	s.done = make(chan struct{})
	s.conns = make(map[uint64]context.CancelFunc)

	s.session = NewSession(&SessionConfig{
		Context:           s.ctx,
		Registry:          s.opts.registry,
		Identities:        s.opts.identities,
		Container:         s.opts.container,
		Clock:             loopClock{base: s.opts.clock, post: s.post},
		MinDelay:          s.config.MinDelay,
		ReconnectCooldown: s.config.ReconnectCooldown,
		Hooks:             s.opts.hooks,
		Logger:            s.config.Logger,
		Metrics:           s.opts.metrics,
		Dial:              s.dial,
		Hangup:            s.hangup,
		OnError:           s.config.OnError,
	})
	s.state.Store(s.session.State())

	go s.run(s.ctx)
	return nil
}

// Stop closes the connection, cancels pending timers and waits for the
// loop and stream readers to exit.
func (s *Spectator) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	if s.cancel != nil {
		s.cancel()
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	readersDone := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(readersDone)
	}()
	select {
	case <-readersDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.started.Store(false)
	return nil
}

// Connect switches to the stream selected by sel. Any current connection
// is closed first.
func (s *Spectator) Connect(sel types.Selector) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	if !s.post(func() {
		if err := s.session.Connect(sel); err != nil {
			s.session.reportError(NewSpectatorError("Connect", err))
		}
	}) {
		return ErrSessionClosed
	}
	return nil
}

// Snapshot returns a copy of the rendered view.
func (s *Spectator) Snapshot(ctx context.Context) (*render.Element, error) {
	var snap *render.Element
	err := s.do(ctx, func(sess *Session) {
		snap = sess.Container().Snapshot()
	})
	return snap, err
}

// Match returns the match being watched, or nil.
func (s *Spectator) Match(ctx context.Context) (*hooks.MatchInfo, error) {
	var match *hooks.MatchInfo
	err := s.do(ctx, func(sess *Session) {
		match = sess.Match()
	})
	return match, err
}

// State returns the session state as of the last loop turn.
func (s *Spectator) State() runstate.SessionState {
	return s.state.Load().(runstate.SessionState)
}

// Version increases every time the loop handles a message, so readers can
// poll it to tell whether Snapshot may have changed.
func (s *Spectator) Version() uint64 {
	return s.version.Load()
}

// InstanceID returns the unique identifier for this spectator.
func (s *Spectator) InstanceID() uuid.UUID {
	return s.instanceID
}

// Hooks returns the hook registry.
func (s *Spectator) Hooks() *hooks.Registry {
	return s.opts.hooks
}

// IsRunning returns true if the spectator is running.
func (s *Spectator) IsRunning() bool {
	return s.started.Load()
}

func (s *Spectator) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.session.Close()
			s.state.Store(s.session.State())
			return

		case fn := <-s.inbox:
			fn()
			s.state.Store(s.session.State())
			s.version.Add(1)
		}
	}
}

// post hands fn to the loop. It reports false once the loop has exited.
func (s *Spectator) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (s *Spectator) do(ctx context.Context, fn func(*Session)) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	finished := make(chan struct{})
	if !s.post(func() {
		fn(s.session)
		close(finished)
	}) {
		return ErrSessionClosed
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dial starts a reader for connection gen. Called on the loop.
func (s *Spectator) dial(gen uint64, sel types.Selector) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.conns[gen] = cancel

	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		defer cancel()

		conn, err := s.dialer.Dial(ctx, sel)
		if err != nil {
			s.post(func() { s.session.HandleDisconnect(gen, err) })
			return
		}
		defer conn.Close()

		for {
			payload, err := conn.Next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.post(func() { s.session.HandleDisconnect(gen, err) })
				}
				return
			}
			s.post(func() { _ = s.session.HandlePayload(gen, payload) })
		}
	}()
}

// hangup cancels the reader for connection gen. Called on the loop.
func (s *Spectator) hangup(gen uint64) {
	if cancel, ok := s.conns[gen]; ok {
		cancel()
		delete(s.conns, gen)
	}
}

// loopClock runs timer callbacks on the spectator loop.
type loopClock struct {
	base pacer.Clock
	post func(func()) bool
}

func (c loopClock) Now() time.Time { return c.base.Now() }

func (c loopClock) AfterFunc(d time.Duration, f func()) pacer.Timer {
	return c.base.AfterFunc(d, func() { c.post(f) })
}
