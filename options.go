package arenawatch

import (
	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/pacer"
	"github.com/youssefsiam38/arenawatch/render"
)

// Option is a functional option for configuring a Spectator
type Option func(*spectatorOptions) error

type spectatorOptions struct {
	registry   *render.Registry
	identities render.Identities
	hooks      *hooks.Registry
	metrics    *Metrics
	clock      pacer.Clock
	container  *render.Container
}

func newSpectatorOptions() *spectatorOptions {
	return &spectatorOptions{
		registry:  DefaultRegistry(),
		hooks:     hooks.NewRegistry(),
		clock:     pacer.RealClock(),
		container: render.NewContainer(),
	}
}

// WithRegistry replaces the built-in renderer registry
func WithRegistry(r *render.Registry) Option {
	return func(o *spectatorOptions) error {
		if r == nil {
			return NewSpectatorError("WithRegistry", ErrInvalidConfig).
				WithContext("reason", "registry is nil")
		}
		o.registry = r
		return nil
	}
}

// WithIdentities sets where renderers resolve agent names and colours,
// usually a *lookup.Cache
func WithIdentities(ids render.Identities) Option {
	return func(o *spectatorOptions) error {
		o.identities = ids
		return nil
	}
}

// WithHooks sets the hook registry
func WithHooks(h *hooks.Registry) Option {
	return func(o *spectatorOptions) error {
		if h == nil {
			return NewSpectatorError("WithHooks", ErrInvalidConfig).
				WithContext("reason", "hook registry is nil")
		}
		o.hooks = h
		return nil
	}
}

// WithMetrics records spectator activity in m
func WithMetrics(m *Metrics) Option {
	return func(o *spectatorOptions) error {
		o.metrics = m
		return nil
	}
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(c pacer.Clock) Option {
	return func(o *spectatorOptions) error {
		if c == nil {
			return NewSpectatorError("WithClock", ErrInvalidConfig).
				WithContext("reason", "clock is nil")
		}
		o.clock = c
		return nil
	}
}

// WithContainer sets the container renderers draw into
func WithContainer(c *render.Container) Option {
	return func(o *spectatorOptions) error {
		if c == nil {
			return NewSpectatorError("WithContainer", ErrInvalidConfig).
				WithContext("reason", "container is nil")
		}
		o.container = c
		return nil
	}
}
