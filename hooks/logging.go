package hooks

import (
	"context"
	"log"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Register adds the hooks to r.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnConnect(h.Connect)
	r.OnEnd(h.End)
	r.OnDecodeError(h.DecodeError)
	r.OnReconnect(h.Reconnect)
}

// Connect logs a new match.
func (h *LoggingHooks) Connect(ctx context.Context, match MatchInfo) error {
	h.logger.Printf("[arenawatch] Watching %s match %s with %d players (%d history deltas)",
		match.GameType, match.MatchID, len(match.Players), match.HistoryLen)
	return nil
}

// End logs the end of a match.
func (h *LoggingHooks) End(ctx context.Context, end EndEvent) error {
	h.logger.Printf("[arenawatch] Match %s ended after %d updates", end.MatchID, end.Updates)
	return nil
}

// DecodeError logs an undecodable payload.
func (h *LoggingHooks) DecodeError(ctx context.Context, payload []byte, err error) error {
	h.logger.Printf("[arenawatch] Dropped undecodable payload (%d bytes): %v", len(payload), err)
	return nil
}

// Reconnect logs a scheduled reconnect.
func (h *LoggingHooks) Reconnect(ctx context.Context, event ReconnectEvent) error {
	h.logger.Printf("[arenawatch] Reconnecting to %s in %v (%s)", event.Selector, event.Delay, event.Reason)
	return nil
}

// VerboseLoggingHooks provides detailed logging for debugging
type VerboseLoggingHooks struct {
	logger *log.Logger
}

// NewVerboseLoggingHooks creates verbose logging hooks
func NewVerboseLoggingHooks(logger *log.Logger) *VerboseLoggingHooks {
	return &VerboseLoggingHooks{logger: logger}
}

// Register adds the hooks to r.
func (h *VerboseLoggingHooks) Register(r *Registry) {
	r.OnConnect(h.Connect)
	r.OnUpdate(h.Update)
	r.OnEnd(h.End)
	r.OnDecodeError(h.DecodeError)
	r.OnReconnect(h.Reconnect)
}

// Connect logs match details.
func (h *VerboseLoggingHooks) Connect(ctx context.Context, match MatchInfo) error {
	h.logger.Printf("[arenawatch][VERBOSE] === Connected: %s ===", match.MatchID)
	h.logger.Printf("[arenawatch][VERBOSE] Game: %s", match.GameType)
	h.logger.Printf("[arenawatch][VERBOSE] Selector: %s", match.Selector)
	for i, id := range match.Players {
		h.logger.Printf("[arenawatch][VERBOSE] Player %d: agent %s", i+1, id)
	}
	h.logger.Printf("[arenawatch][VERBOSE] History: %d deltas", match.HistoryLen)
	return nil
}

// Update logs every rendered delta.
func (h *VerboseLoggingHooks) Update(ctx context.Context, update UpdateEvent) error {
	preview := string(update.Delta)
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	source := "live"
	if update.Replayed {
		source = "history"
	}
	h.logger.Printf("[arenawatch][VERBOSE] Update #%d (%s): %s", update.Seq, source, preview)
	return nil
}

// End logs the end summary.
func (h *VerboseLoggingHooks) End(ctx context.Context, end EndEvent) error {
	h.logger.Printf("[arenawatch][VERBOSE] === Match %s ended ===", end.MatchID)
	h.logger.Printf("[arenawatch][VERBOSE] Updates: %d", end.Updates)
	if len(end.Summary) > 0 {
		h.logger.Printf("[arenawatch][VERBOSE] Summary: %s", string(end.Summary))
	}
	return nil
}

// DecodeError logs the offending payload.
func (h *VerboseLoggingHooks) DecodeError(ctx context.Context, payload []byte, err error) error {
	h.logger.Printf("[arenawatch][VERBOSE] Decode error: %v", err)
	h.logger.Printf("[arenawatch][VERBOSE] Payload: %s", string(payload))
	return nil
}

// Reconnect logs the reconnect schedule.
func (h *VerboseLoggingHooks) Reconnect(ctx context.Context, event ReconnectEvent) error {
	h.logger.Printf("[arenawatch][VERBOSE] Reconnect to %s scheduled in %v: %s", event.Selector, event.Delay, event.Reason)
	return nil
}
