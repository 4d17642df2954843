package arenawatch

import (
	"fmt"
	"time"
)

// Logger is the logging interface used by the spectator. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SpectatorConfig holds configuration for the Spectator.
type SpectatorConfig struct {
	// MinDelay is the minimum time between two paced renderer calls (optional)
	// Default: 250 milliseconds
	MinDelay time.Duration

	// ReconnectCooldown is how long to wait before reconnecting after a
	// match ends or the stream drops (optional)
	// Default: 2 seconds
	ReconnectCooldown time.Duration

	// InboxSize bounds the messages queued for the spectator loop (optional)
	// Default: 256
	InboxSize int

	// Logger receives diagnostics (optional). Nil disables logging.
	Logger Logger

	// OnError is called for renderer failures, unknown game types and
	// other errors that do not stop the spectator
	OnError func(err error)
}

// DefaultSpectatorConfig returns the default spectator configuration.
func DefaultSpectatorConfig() *SpectatorConfig {
	return &SpectatorConfig{
		MinDelay:          DefaultMinDelay,
		ReconnectCooldown: DefaultReconnectCooldown,
		InboxSize:         DefaultInboxSize,
	}
}

func (c *SpectatorConfig) applyDefaults() {
	if c.MinDelay == 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.ReconnectCooldown == 0 {
		c.ReconnectCooldown = DefaultReconnectCooldown
	}
	if c.InboxSize == 0 {
		c.InboxSize = DefaultInboxSize
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Validate validates the configuration
func (c *SpectatorConfig) Validate() error {
	if c.MinDelay < 0 {
		return fmt.Errorf("%w: MinDelay must not be negative", ErrInvalidConfig)
	}
	if c.ReconnectCooldown < 0 {
		return fmt.Errorf("%w: ReconnectCooldown must not be negative", ErrInvalidConfig)
	}
	if c.InboxSize < 0 {
		return fmt.Errorf("%w: InboxSize must not be negative", ErrInvalidConfig)
	}
	return nil
}
