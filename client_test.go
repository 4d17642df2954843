package arenawatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/render/tictactoe"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/streaming"
	"github.com/youssefsiam38/arenawatch/transport"
	"github.com/youssefsiam38/arenawatch/types"
)

// fakeConn replays queued frames and reports io.EOF once they run out.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(frames ...[]byte) *fakeConn {
	c := &fakeConn{
		frames: make(chan []byte, len(frames)),
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		c.frames <- f
	}
	close(c.frames)
	return c
}

func (c *fakeConn) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, io.EOF
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer hands out results in order and blocks further dials on an
// idle connection.
type fakeDialer struct {
	mu      sync.Mutex
	results []func() (transport.Conn, error)
	dialled chan types.Selector
}

func newFakeDialer(results ...func() (transport.Conn, error)) *fakeDialer {
	return &fakeDialer{results: results, dialled: make(chan types.Selector, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, sel types.Selector) (transport.Conn, error) {
	d.dialled <- sel

	d.mu.Lock()
	var next func() (transport.Conn, error)
	if len(d.results) > 0 {
		next, d.results = d.results[0], d.results[1:]
	}
	d.mu.Unlock()

	if next == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return next()
}

func connOf(frames ...[]byte) func() (transport.Conn, error) {
	return func() (transport.Conn, error) { return newFakeConn(frames...), nil }
}

func mustEncode(t *testing.T, env *streaming.Envelope) []byte {
	t.Helper()
	data, err := streaming.Encode(env)
	if err != nil {
		t.Fatalf("Encode(%s): %v", env.Kind, err)
	}
	return data
}

func fastConfig() *SpectatorConfig {
	return &SpectatorConfig{
		MinDelay:          time.Millisecond,
		ReconnectCooldown: 20 * time.Millisecond,
	}
}

func waitDial(t *testing.T, d *fakeDialer) types.Selector {
	t.Helper()
	select {
	case sel := <-d.dialled:
		return sel
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return types.Selector{}
	}
}

func TestNewSpectator_Validation(t *testing.T) {
	dialer := newFakeDialer()

	tests := []struct {
		name   string
		dialer transport.Dialer
		config *SpectatorConfig
		opts   []Option
	}{
		{"nil dialer", nil, nil, nil},
		{"negative min delay", dialer, &SpectatorConfig{MinDelay: -time.Second}, nil},
		{"negative cooldown", dialer, &SpectatorConfig{ReconnectCooldown: -time.Second}, nil},
		{"negative inbox", dialer, &SpectatorConfig{InboxSize: -1}, nil},
		{"nil registry", dialer, nil, []Option{WithRegistry(nil)}},
		{"nil hooks", dialer, nil, []Option{WithHooks(nil)}},
		{"nil clock", dialer, nil, []Option{WithClock(nil)}},
		{"nil container", dialer, nil, []Option{WithContainer(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpectator(tt.dialer, tt.config, tt.opts...)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewSpectator() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSpectator_StartStop(t *testing.T) {
	s, err := NewSpectator(newFakeDialer(), nil)
	if err != nil {
		t.Fatalf("NewSpectator() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Stop(ctx); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
	if err := s.Connect(types.AnyMatch()); err != ErrNotStarted {
		t.Fatalf("Connect() error = %v, want %v", err, ErrNotStarted)
	}
	if _, err := s.Snapshot(ctx); err != ErrNotStarted {
		t.Fatalf("Snapshot() error = %v, want %v", err, ErrNotStarted)
	}

	for round := 0; round < 2; round++ {
		if err := s.Start(ctx); err != nil {
			t.Fatalf("round %d: Start() error = %v", round, err)
		}
		if err := s.Start(ctx); err != ErrAlreadyStarted {
			t.Fatalf("round %d: Start() error = %v, want %v", round, err, ErrAlreadyStarted)
		}
		if !s.IsRunning() {
			t.Errorf("round %d: expected spectator to be running", round)
		}
		if err := s.Stop(ctx); err != nil {
			t.Fatalf("round %d: Stop() error = %v", round, err)
		}
		if s.IsRunning() {
			t.Errorf("round %d: expected spectator to not be running", round)
		}
		if s.State() != runstate.SessionStateClosed {
			t.Errorf("round %d: State = %s, want closed", round, s.State())
		}
	}
}

func TestSpectator_RendersStreamAndRotates(t *testing.T) {
	frames := [][]byte{
		mustEncode(t, tttConnect(grid("X..", "...", "..."))),
		mustEncode(t, tttUpdate(grid("X..", ".O.", "..."))),
		[]byte(`not json`),
		mustEncode(t, tttUpdate(grid("XX.", ".O.", "..."))),
		mustEncode(t, tttEnd(`"7 wins"`)),
	}
	dialer := newFakeDialer(connOf(frames...))

	reg := hooks.NewRegistry()
	ended := make(chan hooks.EndEvent, 1)
	reg.OnEnd(func(ctx context.Context, e hooks.EndEvent) error {
		ended <- e
		return nil
	})
	decodeErrs := make(chan error, 4)
	reg.OnDecodeError(func(ctx context.Context, payload []byte, err error) error {
		decodeErrs <- err
		return nil
	})

	s, err := NewSpectator(dialer, fastConfig(), WithHooks(reg))
	if err != nil {
		t.Fatalf("NewSpectator() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	if err := s.Connect(types.WithPlayer(7)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if sel := waitDial(t, dialer); !sel.Equal(types.WithPlayer(7)) {
		t.Fatalf("dialled %s", sel)
	}

	select {
	case e := <-ended:
		if e.Updates != 3 {
			t.Errorf("Updates = %d, want 3", e.Updates)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("match never ended")
	}
	if len(decodeErrs) != 1 {
		t.Errorf("decode hook called %d times, want 1", len(decodeErrs))
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !snap.HasClass("game-ended") {
		t.Error("snapshot not marked as ended")
	}
	var cell string
	snap.Walk(func(e *render.Element) bool {
		if e.ID == tictactoe.CellID(0, 1) {
			cell = e.Text
			return false
		}
		return true
	})
	if cell != "X" {
		t.Errorf("cell 0,1 = %q, want X", cell)
	}

	match, err := s.Match(ctx)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if match == nil || match.GameType != tictactoe.GameType || match.HistoryLen != 1 {
		t.Errorf("Match() = %+v", match)
	}

	// The next match comes from a fresh connection with the same selector.
	if sel := waitDial(t, dialer); !sel.Equal(types.WithPlayer(7)) {
		t.Errorf("reconnected with %s", sel)
	}
	if s.Version() == 0 {
		t.Error("Version() did not move")
	}
}

func TestSpectator_RetriesFailedDial(t *testing.T) {
	dialer := newFakeDialer(
		func() (transport.Conn, error) { return nil, errors.New("connection refused") },
		connOf(mustEncode(t, tttConnect())),
	)

	reg := hooks.NewRegistry()
	retries := make(chan hooks.ReconnectEvent, 4)
	reg.OnReconnect(func(ctx context.Context, e hooks.ReconnectEvent) error {
		retries <- e
		return nil
	})
	connected := make(chan hooks.MatchInfo, 1)
	reg.OnConnect(func(ctx context.Context, m hooks.MatchInfo) error {
		connected <- m
		return nil
	})

	s, err := NewSpectator(dialer, fastConfig(), WithHooks(reg))
	if err != nil {
		t.Fatalf("NewSpectator() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(ctx)

	if err := s.Connect(types.AnyMatch()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	select {
	case m := <-connected:
		if m.GameType != tictactoe.GameType {
			t.Errorf("GameType = %q", m.GameType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("never connected after the failed dial")
	}

	e := <-retries
	if e.Reason != ReasonDialFailed {
		t.Errorf("Reason = %q, want %q", e.Reason, ReasonDialFailed)
	}
	if e.Delay != 20*time.Millisecond {
		t.Errorf("Delay = %s, want 20ms", e.Delay)
	}
}

func TestSpectator_StopClosesConnection(t *testing.T) {
	conn := &fakeConn{frames: make(chan []byte), closed: make(chan struct{})}
	dialer := newFakeDialer(func() (transport.Conn, error) { return conn, nil })

	s, err := NewSpectator(dialer, fastConfig())
	if err != nil {
		t.Fatalf("NewSpectator() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Connect(types.AnyMatch()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitDial(t, dialer)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-conn.closed:
	default:
		t.Error("connection left open after Stop")
	}
	if err := s.Connect(types.AnyMatch()); err != ErrNotStarted {
		t.Errorf("Connect() after Stop error = %v, want %v", err, ErrNotStarted)
	}
}
