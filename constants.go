package arenawatch

import (
	"time"

	"github.com/youssefsiam38/arenawatch/pacer"
)

// Version is the current arenawatch version
const Version = "1.0.0"

const (
	// DefaultMinDelay is the minimum time between two paced renderer calls.
	DefaultMinDelay = pacer.DefaultMinDelay

	// DefaultReconnectCooldown is the wait between the end of a match (or a
	// dropped stream) and the next connection attempt.
	DefaultReconnectCooldown = 2 * time.Second

	// DefaultInboxSize bounds the messages waiting for the spectator loop.
	DefaultInboxSize = 256
)

// Reconnect reasons reported to hooks and metrics.
const (
	ReasonMatchEnded    = "match ended"
	ReasonStreamDropped = "stream dropped"
	ReasonDialFailed    = "dial failed"
)
