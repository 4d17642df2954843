// Package storage defines how archived matches are persisted.
//
// Driver packages (driver/pgxv5, driver/databasesql) implement Store against
// PostgreSQL; MemoryStore keeps everything in process.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/types"
)

// Store defines the storage interface for archived matches
type Store interface {
	// Match operations
	CreateMatch(ctx context.Context, params *CreateMatchParams) error
	FinishMatch(ctx context.Context, matchID uuid.UUID, status runstate.MatchStatus, summary json.RawMessage) error
	GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, error)
	ListMatches(ctx context.Context, params *ListMatchesParams) ([]*Match, error)

	// Delta operations. Deltas of one match are appended in seq order.
	AppendDeltas(ctx context.Context, matchID uuid.UUID, deltas []*Delta) error
	ListDeltas(ctx context.Context, matchID uuid.UUID) ([]*Delta, error)

	// Retention
	DeleteMatchesBefore(ctx context.Context, before time.Time) (int, error)
}

// Match is an archived match
type Match struct {
	ID         uuid.UUID            `json:"id"`
	GameType   string               `json:"game_type"`
	Players    []types.AgentID      `json:"players"`
	Selector   types.Selector       `json:"selector"`
	Status     runstate.MatchStatus `json:"status"`
	Summary    json.RawMessage      `json:"summary,omitempty"`
	DeltaCount int                  `json:"delta_count"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}

// Delta is one archived renderer delta
type Delta struct {
	MatchID    uuid.UUID       `json:"match_id"`
	Seq        int             `json:"seq"`
	Data       json.RawMessage `json:"data"`
	Replayed   bool            `json:"replayed"`
	ReceivedAt time.Time       `json:"received_at"`
}

// CreateMatchParams holds the fields of a new match
type CreateMatchParams struct {
	ID        uuid.UUID
	GameType  string
	Players   []types.AgentID
	Selector  types.Selector
	StartedAt time.Time
}

// ListMatchesParams filters ListMatches. Zero fields match everything.
type ListMatchesParams struct {
	GameType string
	Status   runstate.MatchStatus
	PlayerID types.AgentID

	// Before only returns matches started before this time
	Before *time.Time

	// Limit caps the result size. Default: 50
	Limit int
}

// DefaultListLimit is used when ListMatchesParams.Limit is not set.
const DefaultListLimit = 50

// EffectiveLimit returns the limit with the default applied.
func (p *ListMatchesParams) EffectiveLimit() int {
	if p == nil || p.Limit <= 0 {
		return DefaultListLimit
	}
	return p.Limit
}

// Validate checks the fields every store requires.
func (p *CreateMatchParams) Validate() error {
	if p == nil {
		return ErrInvalidMatch
	}
	if p.ID == uuid.Nil {
		return wrap(ErrInvalidMatch, "match id is required")
	}
	if p.GameType == "" {
		return wrap(ErrInvalidMatch, "game type is required")
	}
	return nil
}
