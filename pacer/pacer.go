// Package pacer releases queued match deltas to a renderer at a bounded
// cadence.
//
// Each tick looks at the front of the queue. The entry is released when the
// minimum delay since the previous release has passed, or immediately when
// the dispatcher says the entry need not wait. Otherwise the tick is
// rescheduled for exactly the remaining time. A tick on an empty queue does
// nothing and schedules nothing; the next Enqueue restarts ticking.
package pacer

import (
	"errors"
	"time"
)

// DefaultMinDelay is the minimum time between two paced releases.
const DefaultMinDelay = 250 * time.Millisecond

// ErrStopped is returned by Tick after Stop.
var ErrStopped = errors.New("pacer stopped")

// Dispatcher receives released entries.
type Dispatcher interface {
	// ShouldWait reports whether an update entry is subject to the minimum
	// delay. It must not have side effects.
	ShouldWait(e Entry) bool

	// Dispatch applies the entry. The entry is consumed whether or not an
	// error is returned.
	Dispatch(e Entry) error
}

// Config holds configuration for the pacer.
type Config struct {
	// MinDelay is the minimum interval between paced releases.
	// Default: 250ms
	MinDelay time.Duration

	// OnError receives dispatch errors from timer-driven ticks.
	OnError func(err error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{MinDelay: DefaultMinDelay}
}

// Pacer drains a Queue into a Dispatcher.
//
// A Pacer is not safe for concurrent use. Its clock must deliver timer
// callbacks on the goroutine that owns the pacer.
type Pacer struct {
	clock      Clock
	dispatcher Dispatcher
	config     *Config

	queue Queue
	last  time.Time
	timer Timer

	// epoch invalidates callbacks scheduled before the last Reset or Stop.
	epoch   uint64
	stopped bool
}

// New creates a pacer.
func New(clock Clock, dispatcher Dispatcher, config *Config) *Pacer {
	if config == nil {
		config = DefaultConfig()
	} else if config.MinDelay <= 0 {
		config.MinDelay = DefaultMinDelay
	}

	return &Pacer{
		clock:      clock,
		dispatcher: dispatcher,
		config:     config,
		last:       clock.Now(),
	}
}

// Enqueue appends an entry and starts ticking if no tick is pending.
func (p *Pacer) Enqueue(e Entry) {
	if p.stopped {
		return
	}
	p.queue.Push(e)
	if p.timer == nil {
		p.schedule(0)
	}
}

// Reset drops all queued entries, cancels the pending tick and restarts the
// release clock at now.
func (p *Pacer) Reset() {
	p.cancel()
	p.queue.Clear()
	p.last = p.clock.Now()
	p.stopped = false
}

// Stop cancels the pending tick and drops the queue. Enqueue is ignored
// until the next Reset.
func (p *Pacer) Stop() {
	p.cancel()
	p.queue.Clear()
	p.stopped = true
}

// Len returns the number of queued entries.
func (p *Pacer) Len() int {
	return p.queue.Len()
}

// Pending reports whether a tick is scheduled.
func (p *Pacer) Pending() bool {
	return p.timer != nil
}

// LastRelease returns when the previous entry was released.
func (p *Pacer) LastRelease() time.Time {
	return p.last
}

// Tick runs one pacing step. It returns the dispatcher's error for the
// released entry, if any.
func (p *Pacer) Tick() error {
	if p.stopped {
		return ErrStopped
	}

	front, ok := p.queue.Peek()
	if !ok {
		return nil
	}

	mustWait := true
	if front.Kind == EntryUpdate {
		mustWait = p.dispatcher.ShouldWait(front)
	}

	now := p.clock.Now()
	elapsed := now.Sub(p.last)

	if !mustWait || elapsed >= p.config.MinDelay {
		p.queue.Pop()
		p.last = now

		err := p.dispatcher.Dispatch(front)

		if !p.stopped && p.queue.Len() > 0 && p.timer == nil {
			p.schedule(0)
		}
		return err
	}

	p.schedule(max(0, p.config.MinDelay-elapsed))
	return nil
}

func (p *Pacer) schedule(d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	epoch := p.epoch
	p.timer = p.clock.AfterFunc(d, func() {
		if epoch != p.epoch {
			return
		}
		p.timer = nil
		if err := p.Tick(); err != nil && p.config.OnError != nil {
			p.config.OnError(err)
		}
	})
}

func (p *Pacer) cancel() {
	p.epoch++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
