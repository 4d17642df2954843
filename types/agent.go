package types

import (
	"strconv"
)

// AgentID identifies an agent on the platform.
type AgentID int64

// String returns the decimal form used in query strings.
func (id AgentID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseAgentID parses a decimal agent ID.
func ParseAgentID(s string) (AgentID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return AgentID(v), nil
}

// Agent is the payload returned by the agent lookup endpoint.
type Agent struct {
	ID          AgentID `json:"id"`
	Name        string  `json:"name"`
	Colour      string  `json:"colour"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played"`
	Language    string  `json:"language"`
	Owner       *string `json:"owner,omitempty"`
	OwnerID     *int64  `json:"owner_id,omitempty"`
	Removed     bool    `json:"removed"`
	Partial     bool    `json:"partial"`
	Error       *string `json:"error,omitempty"`
	Src         *string `json:"src,omitempty"`
}

// LeaderboardEntry is one row of the agent leaderboard.
type LeaderboardEntry struct {
	ID      AgentID `json:"id"`
	Name    string  `json:"name"`
	Colour  string  `json:"colour,omitempty"`
	Rating  float64 `json:"rating"`
	Removed bool    `json:"removed"`
}

// Identity is the display data the lookup cache keeps per agent.
type Identity struct {
	Name   string
	Colour string
}
