// Package archive records spectated matches into a storage.Store.
//
// A Recorder attaches to a session's hooks. Hooks only queue work; a single
// writer goroutine applies it in order, so rendering never waits on the
// database. Deltas that arrive together are appended in one call.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/driver"
	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/notifier"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
)

// Write operations reported to Config.OnWrite.
const (
	OpCreate  = "create"
	OpAppend  = "append"
	OpFinish  = "finish"
	OpAbandon = "abandon"
	OpNotify  = "notify"
)

// Default recorder configuration values
const (
	DefaultBatchSize    = 64
	DefaultWriteTimeout = 10 * time.Second
)

// EventNotifier announces archive events. *notifier.Notifier satisfies it.
type EventNotifier interface {
	Notify(ctx context.Context, eventType notifier.EventType, matchID uuid.UUID) error
}

// Config holds configuration for a Recorder.
type Config struct {
	// BatchSize caps how many deltas go into one AppendDeltas call.
	// Default: 64
	BatchSize int

	// WriteTimeout bounds each store call.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// Notifier, if set, is told when a match is stored and when it is
	// archived.
	Notifier EventNotifier

	// OnWrite is called after every store or notify call.
	OnWrite func(op string, err error)

	// OnError is called when a write fails.
	OnError func(err error)
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:    DefaultBatchSize,
		WriteTimeout: DefaultWriteTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

type opKind int

const (
	opStart opKind = iota
	opDelta
	opEnd
	opAbandon
)

type op struct {
	kind  opKind
	match hooks.MatchInfo
	delta *storage.Delta
	id    uuid.UUID
	data  json.RawMessage
}

// Recorder writes the matches a session shows into a store.
type Recorder struct {
	store  storage.Store
	config Config

	mu      sync.Mutex
	queue   []op
	wake    chan struct{}
	closing chan struct{}

	// Owned by the writer goroutine.
	open    uuid.UUID
	pending []*storage.Delta

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store storage.Store, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.applyDefaults()

	return &Recorder{
		store:  store,
		config: cfg,
		wake:   make(chan struct{}, 1),
	}
}

// Attach registers the recorder's hooks. A stream that drops mid-match,
// or a new match arriving before the end, closes the open match as
// abandoned.
func (r *Recorder) Attach(reg *hooks.Registry) {
	reg.OnConnect(func(ctx context.Context, match hooks.MatchInfo) error {
		r.push(op{kind: opStart, match: match})
		return nil
	})
	reg.OnUpdate(func(ctx context.Context, update hooks.UpdateEvent) error {
		r.push(op{kind: opDelta, id: update.MatchID, delta: &storage.Delta{
			MatchID:    update.MatchID,
			Seq:        update.Seq,
			Data:       update.Delta,
			Replayed:   update.Replayed,
			ReceivedAt: time.Now(),
		}})
		return nil
	})
	reg.OnEnd(func(ctx context.Context, end hooks.EndEvent) error {
		r.push(op{kind: opEnd, id: end.MatchID, data: end.Summary})
		return nil
	})
	reg.OnReconnect(func(ctx context.Context, event hooks.ReconnectEvent) error {
		r.push(op{kind: opAbandon})
		return nil
	})
}

// Start runs the writer. Writes never join a transaction carried by ctx.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	r.done = make(chan struct{})
	r.closing = make(chan struct{})
	ctx, r.cancel = context.WithCancel(driver.StripExecutor(ctx))
	go r.run(ctx)

	return nil
}

// Stop drains queued work, closes an open match as abandoned and stops the
// writer. If ctx ends first, remaining work is dropped.
func (r *Recorder) Stop(ctx context.Context) error {
	if !r.started.Load() {
		return ErrNotStarted
	}

	close(r.closing)
	select {
	case <-r.done:
	case <-ctx.Done():
		r.cancel()
		<-r.done
		r.started.Store(false)
		return ctx.Err()
	}

	r.cancel()
	r.started.Store(false)
	return nil
}

// IsRunning returns true if the writer is running.
func (r *Recorder) IsRunning() bool {
	return r.started.Load()
}

// Pending returns the number of queued operations.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Recorder) push(o op) {
	r.mu.Lock()
	r.queue = append(r.queue, o)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Recorder) take() []op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.queue
	r.queue = nil
	return ops
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	for {
		r.apply(ctx, r.take())

		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		case <-r.closing:
			r.apply(ctx, r.take())
			r.abandonOpen(ctx)
			return
		}
	}
}

// apply runs ops in order and flushes the deltas they leave pending.
func (r *Recorder) apply(ctx context.Context, ops []op) {
	for _, o := range ops {
		if ctx.Err() != nil {
			return
		}
		switch o.kind {
		case opStart:
			r.abandonOpen(ctx)
			r.start(ctx, o.match)
		case opDelta:
			if o.id != r.open || r.open == uuid.Nil {
				continue
			}
			r.pending = append(r.pending, o.delta)
			if len(r.pending) >= r.config.BatchSize {
				r.flush(ctx)
			}
		case opEnd:
			if o.id != r.open || r.open == uuid.Nil {
				continue
			}
			r.finish(ctx, runstate.MatchStatusFinished, o.data)
		case opAbandon:
			r.abandonOpen(ctx)
		}
	}
	r.flush(ctx)
}

func (r *Recorder) start(ctx context.Context, match hooks.MatchInfo) {
	err := r.write(ctx, OpCreate, func(ctx context.Context) error {
		return r.store.CreateMatch(ctx, &storage.CreateMatchParams{
			ID:        match.MatchID,
			GameType:  match.GameType,
			Players:   match.Players,
			Selector:  match.Selector,
			StartedAt: match.ConnectedAt,
		})
	})
	if err != nil {
		return
	}
	r.open = match.MatchID
	r.notify(ctx, notifier.EventMatchStarted, match.MatchID)
}

func (r *Recorder) flush(ctx context.Context) {
	if len(r.pending) == 0 || r.open == uuid.Nil {
		r.pending = nil
		return
	}
	batch := r.pending
	r.pending = nil

	err := r.write(ctx, OpAppend, func(ctx context.Context) error {
		return r.store.AppendDeltas(ctx, r.open, batch)
	})
	if err != nil {
		// A gap would fail every later append; stop recording deltas and
		// let the match be closed as abandoned.
		r.finish(ctx, runstate.MatchStatusAbandoned, nil)
	}
}

func (r *Recorder) abandonOpen(ctx context.Context) {
	if r.open == uuid.Nil {
		return
	}
	r.finish(ctx, runstate.MatchStatusAbandoned, nil)
}

func (r *Recorder) finish(ctx context.Context, status runstate.MatchStatus, summary json.RawMessage) {
	r.flush(ctx)
	if r.open == uuid.Nil {
		return
	}
	id := r.open
	r.open = uuid.Nil

	name := OpFinish
	if status == runstate.MatchStatusAbandoned {
		name = OpAbandon
	}
	err := r.write(ctx, name, func(ctx context.Context) error {
		return r.store.FinishMatch(ctx, id, status, summary)
	})
	if err == nil {
		r.notify(ctx, notifier.EventMatchArchived, id)
	}
}

func (r *Recorder) notify(ctx context.Context, eventType notifier.EventType, id uuid.UUID) {
	if r.config.Notifier == nil {
		return
	}
	_ = r.write(ctx, OpNotify, func(ctx context.Context) error {
		return r.config.Notifier.Notify(ctx, eventType, id)
	})
}

func (r *Recorder) write(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	err := fn(ctx)
	if r.config.OnWrite != nil {
		r.config.OnWrite(name, err)
	}
	if err != nil && r.config.OnError != nil {
		r.config.OnError(fmt.Errorf("archive %s: %w", name, err))
	}
	return err
}
