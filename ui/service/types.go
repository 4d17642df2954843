package service

import (
	"time"

	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
	"github.com/youssefsiam38/arenawatch/types"
)

// Page size bounds for archive listings.
const (
	DefaultLimit = 25
	MaxLimit     = 200
)

// LiveView is the current state of the spectator.
type LiveView struct {
	Version uint64                `json:"version"`
	State   runstate.SessionState `json:"state"`
	Match   *hooks.MatchInfo      `json:"match,omitempty"`
	Root    *render.Element       `json:"root"`
}

// MatchListParams filters archived matches.
type MatchListParams struct {
	GameType string
	Status   string
	PlayerID types.AgentID
	Before   *time.Time
	Limit    int
}

// MatchDetail is an archived match with its deltas.
type MatchDetail struct {
	Match  *storage.Match   `json:"match"`
	Deltas []*storage.Delta `json:"deltas"`
}

// ReplayView is the final drawing of a replayed match.
type ReplayView struct {
	Match    *storage.Match        `json:"match"`
	State    runstate.SessionState `json:"state"`
	Duration time.Duration         `json:"duration"`
	Root     *render.Element       `json:"root"`
	Errors   []string              `json:"errors,omitempty"`
}
