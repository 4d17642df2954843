// Package leadership elects one of several spectators sharing an archive
// to hold a role, such as pruning archived matches.
//
// A role is a lease kept in the archive store. The holder renews it well
// before it expires; if it stops renewing, another instance takes over once
// the lease runs out.
package leadership

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/arenawatch/storage"
)

// Default configuration values
const (
	DefaultLeaseName       = "maintenance"
	DefaultLeaderTTL       = 30 * time.Second
	DefaultElectionPeriod  = 10 * time.Second
	DefaultReelectionDelay = 5 * time.Second
)

// Config holds configuration for the leader election system.
type Config struct {
	// Name is the lease the elector competes for.
	// Default: "maintenance"
	Name string

	// LeaderTTL is how long a leader's lease is valid.
	// Default: 30 seconds
	LeaderTTL time.Duration

	// ElectionPeriod is how often to attempt becoming leader when not leader.
	// Default: 10 seconds
	ElectionPeriod time.Duration

	// ReelectionDelay is how often the leader renews its lease. Should be
	// less than LeaderTTL.
	// Default: 5 seconds
	ReelectionDelay time.Duration

	// OnError is called when a store call fails.
	OnError func(err error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:            DefaultLeaseName,
		LeaderTTL:       DefaultLeaderTTL,
		ElectionPeriod:  DefaultElectionPeriod,
		ReelectionDelay: DefaultReelectionDelay,
	}
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultLeaseName
	}
	if c.LeaderTTL <= 0 {
		c.LeaderTTL = DefaultLeaderTTL
	}
	if c.ElectionPeriod <= 0 {
		c.ElectionPeriod = DefaultElectionPeriod
	}
	if c.ReelectionDelay <= 0 {
		c.ReelectionDelay = DefaultReelectionDelay
	}
}

// Callbacks are called when leadership status changes.
type Callbacks struct {
	// OnBecameLeader is called when this instance becomes the leader.
	// It is called with the context that was passed to Start().
	OnBecameLeader func(ctx context.Context)

	// OnLostLeadership is called when this instance loses leadership:
	// a renewal failed, Resign was called, or the elector stopped.
	OnLostLeadership func(ctx context.Context)
}

// Elector competes for one lease on behalf of one instance.
type Elector struct {
	store      storage.LeaseStore
	instanceID string
	config     *Config
	callbacks  Callbacks

	// mu protects isLeader
	mu       sync.RWMutex
	isLeader bool

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewElector creates a new leader elector.
func NewElector(store storage.LeaseStore, instanceID string, config *Config, callbacks Callbacks) *Elector {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()

	return &Elector{
		store:      store,
		instanceID: instanceID,
		config:     config,
		callbacks:  callbacks,
	}
}

// Start begins the leader election process.
// It returns immediately and runs the election loop in a goroutine.
// Call Stop() to stop the election process.
func (e *Elector) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.runElectionLoop(ctx)

	return nil
}

// Stop stops the leader election process.
// If this instance is the leader, it will resign before stopping.
func (e *Elector) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return ErrNotStarted
	}

	e.cancel()
	<-e.done

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if wasLeader {
		resignCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		e.report(e.store.LeaseRelease(resignCtx, e.config.Name, e.instanceID))

		if e.callbacks.OnLostLeadership != nil {
			e.callbacks.OnLostLeadership(ctx)
		}
	}

	e.started.Store(false)
	return nil
}

// IsLeader returns true if this instance is currently the leader.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// IsRunning returns true if the elector is running.
func (e *Elector) IsRunning() bool {
	return e.started.Load()
}

// Resign voluntarily gives up leadership. The elector keeps running and
// may be elected again.
func (e *Elector) Resign(ctx context.Context) error {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if !wasLeader {
		return nil
	}

	if err := e.store.LeaseRelease(ctx, e.config.Name, e.instanceID); err != nil {
		return err
	}

	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}

	return nil
}

func (e *Elector) runElectionLoop(ctx context.Context) {
	defer close(e.done)

	e.attemptElection(ctx)

	for {
		delay := e.config.ElectionPeriod
		if e.IsLeader() {
			delay = e.config.ReelectionDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			if e.IsLeader() {
				e.attemptReelection(ctx)
			} else {
				e.attemptElection(ctx)
			}
		}
	}
}

func (e *Elector) params() *storage.LeaseParams {
	return &storage.LeaseParams{
		Name:     e.config.Name,
		HolderID: e.instanceID,
		TTL:      e.config.LeaderTTL,
	}
}

func (e *Elector) attemptElection(ctx context.Context) {
	elected, err := e.store.LeaseAcquire(ctx, e.params())
	if err != nil {
		// Retried on the next tick.
		e.report(err)
		return
	}
	if !elected {
		return
	}

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = true
	e.mu.Unlock()

	if !wasLeader && e.callbacks.OnBecameLeader != nil {
		e.callbacks.OnBecameLeader(ctx)
	}
}

func (e *Elector) attemptReelection(ctx context.Context) {
	reelected, err := e.store.LeaseRenew(ctx, e.params())
	e.report(err)
	if err == nil && reelected {
		return
	}

	e.mu.Lock()
	e.isLeader = false
	e.mu.Unlock()

	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
}

func (e *Elector) report(err error) {
	if err != nil && e.config.OnError != nil && !errors.Is(err, context.Canceled) {
		e.config.OnError(err)
	}
}
