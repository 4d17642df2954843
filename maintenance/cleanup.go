// Package maintenance provides background services for the match archive.
//
// Cleanup prunes matches past their retention and closes out matches left
// live by a spectator that went away without recording an end.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
)

// Default cleanup configuration values
const (
	DefaultCleanupInterval  = 10 * time.Minute
	DefaultRetention        = 30 * 24 * time.Hour
	DefaultStaleLiveTimeout = 6 * time.Hour

	// staleBatchSize caps how many stale live matches one pass abandons.
	staleBatchSize = 200
)

// CleanupConfig holds configuration for the cleanup service.
type CleanupConfig struct {
	// Interval is how often to run cleanup operations.
	// Default: 10 minutes
	Interval time.Duration

	// Retention is how long archived matches are kept, measured from
	// their start. Negative disables pruning.
	// Default: 30 days
	Retention time.Duration

	// StaleLiveTimeout is how long a match may stay live before it is
	// marked abandoned. Negative disables the check.
	// Default: 6 hours
	StaleLiveTimeout time.Duration

	// ShouldRun, if set, is checked before each scheduled pass and the
	// pass is skipped when it returns false. Spectators sharing an archive
	// pass a leadership.Elector's IsLeader so only one of them prunes.
	ShouldRun func() bool

	// OnPrune is called with the number of matches deleted by a pass.
	OnPrune func(count int)

	// OnAbandon is called with the number of stale matches closed by a pass.
	OnAbandon func(count int)

	// OnError is called when a cleanup operation fails.
	OnError func(err error)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		Interval:         DefaultCleanupInterval,
		Retention:        DefaultRetention,
		StaleLiveTimeout: DefaultStaleLiveTimeout,
	}
}

func (c *CleanupConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultCleanupInterval
	}
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.StaleLiveTimeout == 0 {
		c.StaleLiveTimeout = DefaultStaleLiveTimeout
	}
}

// CleanupResult holds the results of a cleanup operation.
type CleanupResult struct {
	// MatchesPruned is the number of matches deleted past retention.
	MatchesPruned int

	// MatchesAbandoned is the number of stale live matches closed.
	MatchesAbandoned int

	// Errors contains any errors that occurred during cleanup.
	Errors []error
}

// Cleanup runs archive retention on a ticker.
type Cleanup struct {
	store  storage.Store
	config CleanupConfig
	now    func() time.Time

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewCleanup creates a new cleanup service.
func NewCleanup(store storage.Store, config *CleanupConfig) *Cleanup {
	if config == nil {
		config = DefaultCleanupConfig()
	}
	cfg := *config
	cfg.applyDefaults()

	return &Cleanup{
		store:  store,
		config: cfg,
		now:    time.Now,
	}
}

// Start begins the cleanup loop. The first pass runs immediately.
func (c *Cleanup) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.done = make(chan struct{})
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)

	return nil
}

// Stop stops the cleanup loop and waits for a running pass to finish.
func (c *Cleanup) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.started.Store(false)
	return nil
}

func (c *Cleanup) run(ctx context.Context) {
	defer close(c.done)

	c.runCleanup(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCleanup(ctx)
		}
	}
}

func (c *Cleanup) runCleanup(ctx context.Context) {
	if c.config.ShouldRun != nil && !c.config.ShouldRun() {
		return
	}
	result := c.RunOnce(ctx)

	if c.config.OnPrune != nil && result.MatchesPruned > 0 {
		c.config.OnPrune(result.MatchesPruned)
	}
	if c.config.OnAbandon != nil && result.MatchesAbandoned > 0 {
		c.config.OnAbandon(result.MatchesAbandoned)
	}
	if c.config.OnError != nil {
		for _, err := range result.Errors {
			c.config.OnError(err)
		}
	}
}

// RunOnce performs one cleanup pass and returns the result. Stale matches
// are abandoned before pruning so a match is never abandoned after its
// rows are gone.
func (c *Cleanup) RunOnce(ctx context.Context) *CleanupResult {
	result := &CleanupResult{}
	now := c.now()

	if c.config.StaleLiveTimeout > 0 {
		n, err := c.abandonStale(ctx, now.Add(-c.config.StaleLiveTimeout))
		result.MatchesAbandoned = n
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	if c.config.Retention > 0 {
		n, err := c.store.DeleteMatchesBefore(ctx, now.Add(-c.config.Retention))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("prune matches: %w", err))
		} else {
			result.MatchesPruned = n
		}
	}

	return result
}

// abandonStale marks live matches started before horizon as abandoned.
func (c *Cleanup) abandonStale(ctx context.Context, horizon time.Time) (int, error) {
	stale, err := c.store.ListMatches(ctx, &storage.ListMatchesParams{
		Status: runstate.MatchStatusLive,
		Before: &horizon,
		Limit:  staleBatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list stale matches: %w", err)
	}

	count := 0
	for _, m := range stale {
		if err := c.store.FinishMatch(ctx, m.ID, runstate.MatchStatusAbandoned, nil); err != nil {
			// Continue with other matches even if one fails
			continue
		}
		count++
	}
	return count, nil
}

// IsRunning returns true if the cleanup service is running.
func (c *Cleanup) IsRunning() bool {
	return c.started.Load()
}
