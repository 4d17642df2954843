// Package lookup resolves agent display data (names and colours) without
// blocking the render loop.
//
// A miss returns immediately with fallback values and starts one background
// request for the agent. Renderers pick the resolved values up the next time
// they read the cache.
package lookup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/types"
)

// Config holds cache settings.
type Config struct {
	// FallbackColour is returned for agents that are not resolved yet.
	// Defaults to render.FallbackColour.
	FallbackColour string

	// Timeout bounds each background request. Defaults to 10s.
	Timeout time.Duration

	// OnRequest is called when a background request starts.
	OnRequest func(id types.AgentID)

	// RetryAfter is how long a failed agent keeps the fallback before a
	// miss may fetch it again. Agents the platform does not know are not
	// retried until Forget is called. Negative disables retries.
	// Defaults to 30s.
	RetryAfter time.Duration

	// OnError is called when a background request fails.
	OnError func(id types.AgentID, err error)
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		FallbackColour: render.FallbackColour,
		Timeout:        10 * time.Second,
		RetryAfter:     30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.FallbackColour == "" {
		c.FallbackColour = render.FallbackColour
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryAfter == 0 {
		c.RetryAfter = 30 * time.Second
	}
}

// Cache is a concurrent agent identity cache. It implements
// render.Identities.
type Cache struct {
	fetcher Fetcher
	config  *Config

	entries *xsync.MapOf[types.AgentID, types.Identity]
	// requested holds every agent fetched so far. The value is the time a
	// failed agent may be retried; zero while in flight or settled.
	requested *xsync.MapOf[types.AgentID, time.Time]

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Close.
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a cache backed by fetcher. A nil fetcher makes every miss
// permanent.
func New(fetcher Fetcher, config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		fetcher:   fetcher,
		config:    config,
		entries:   xsync.NewMapOf[types.AgentID, types.Identity](),
		requested: xsync.NewMapOf[types.AgentID, time.Time](),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ColourOf returns the agent's colour, or the fallback colour on a miss.
func (c *Cache) ColourOf(id types.AgentID) string {
	if ident, ok := c.Lookup(id); ok {
		return ident.Colour
	}
	return c.config.FallbackColour
}

// NameOf returns the agent's name if it is known.
func (c *Cache) NameOf(id types.AgentID) (string, bool) {
	ident, _ := c.Lookup(id)
	return ident.Name, ident.Name != ""
}

// Lookup returns the agent's identity. It reports false until the agent's
// colour is known, and starts a background request the first time an agent
// misses. The returned identity may still carry a primed name.
func (c *Cache) Lookup(id types.AgentID) (types.Identity, bool) {
	ident, ok := c.entries.Load(id)
	if ok && ident.Colour != "" {
		return ident, true
	}
	c.request(id)
	return ident, false
}

// Peek returns the cached identity without starting a request.
func (c *Cache) Peek(id types.AgentID) (types.Identity, bool) {
	return c.entries.Load(id)
}

// Prime seeds the cache from leaderboard entries. Entries without a colour
// only contribute a name.
func (c *Cache) Prime(entries []types.LeaderboardEntry) {
	for _, e := range entries {
		c.entries.Compute(e.ID, func(old types.Identity, loaded bool) (types.Identity, bool) {
			if e.Name != "" {
				old.Name = e.Name
			}
			if e.Colour != "" {
				old.Colour = e.Colour
			}
			return old, false
		})
	}
}

// Store records a resolved identity.
func (c *Cache) Store(id types.AgentID, ident types.Identity) {
	c.entries.Store(id, ident)
}

// Forget drops the agent so the next miss fetches it again.
func (c *Cache) Forget(id types.AgentID) {
	c.entries.Delete(id)
	c.requested.Delete(id)
}

// Len returns the number of cached agents.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Wait blocks until in-flight requests finish. Misses racing Wait may start
// requests it does not wait for.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight requests and waits for them. Misses after Close
// return fallbacks without fetching.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed.Swap(true) {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Cache) request(id types.AgentID) {
	if c.fetcher == nil || c.closed.Load() {
		return
	}

	now := time.Now()
	start := false
	c.requested.Compute(id, func(retryAt time.Time, loaded bool) (time.Time, bool) {
		if loaded && (retryAt.IsZero() || now.Before(retryAt)) {
			return retryAt, false
		}
		start = true
		return time.Time{}, false
	})
	if !start {
		return
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	if c.config.OnRequest != nil {
		c.config.OnRequest(id)
	}
	go c.fetch(id)
}

func (c *Cache) fetch(id types.AgentID) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()

	agent, err := c.fetcher.Agent(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && c.config.RetryAfter > 0 {
			c.requested.Store(id, time.Now().Add(c.config.RetryAfter))
		}
		if c.config.OnError != nil {
			c.config.OnError(id, err)
		}
		return
	}

	c.entries.Compute(id, func(old types.Identity, loaded bool) (types.Identity, bool) {
		if agent.Name != "" {
			old.Name = agent.Name
		}
		old.Colour = agent.Colour
		if old.Colour == "" {
			old.Colour = c.config.FallbackColour
		}
		return old, false
	})
}
