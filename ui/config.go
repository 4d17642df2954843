package ui

import (
	"time"

	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/storage"
)

// Default configuration values.
const (
	DefaultRefreshInterval = 200 * time.Millisecond
	DefaultPageSize        = 25
	DefaultTitle           = "arenawatch"
)

// Config holds UI package configuration.
type Config struct {
	// BasePath is the URL prefix where the UI is mounted.
	// For example, if mounted at "/watch/", set BasePath to "/watch".
	// All navigation links will be prefixed with this path.
	// Defaults to empty string (root mount).
	BasePath string

	// Title is shown in the page header.
	// Defaults to "arenawatch".
	Title string

	// Store enables the match archive pages and API.
	// If nil, only the live view is served.
	Store storage.Store

	// Registry and Identities are used to replay archived matches.
	// Defaults to the built-in renderers and the fallback colour.
	Registry   *render.Registry
	Identities render.Identities

	// Logger for structured logging.
	// If nil, logging is disabled.
	Logger Logger

	// RefreshInterval is how often the event stream checks the live view
	// for changes.
	// Defaults to 200 milliseconds.
	RefreshInterval time.Duration

	// PageSize for archive listings.
	// Defaults to 25.
	PageSize int
}

// Logger interface for structured logging.
// Compatible with arenawatch.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Title:           DefaultTitle,
		RefreshInterval: DefaultRefreshInterval,
		PageSize:        DefaultPageSize,
	}
}

// applyDefaults fills in default values for zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	if c.PageSize < 1 {
		return ErrInvalidConfig
	}
	if c.RefreshInterval < 10*time.Millisecond {
		return ErrInvalidConfig
	}
	return nil
}
