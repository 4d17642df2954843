package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSelector is returned when a selector cannot be decoded.
var ErrInvalidSelector = errors.New("invalid match selector")

// Selector scopes a match stream to any match or to matches including one agent.
//
// The zero value selects any match.
type Selector struct {
	player *AgentID
}

// AnyMatch returns the selector for "no preference".
func AnyMatch() Selector {
	return Selector{}
}

// WithPlayer returns a selector for matches that include the given agent.
func WithPlayer(id AgentID) Selector {
	return Selector{player: &id}
}

// Player returns the agent the selector is scoped to, if any.
func (s Selector) Player() (AgentID, bool) {
	if s.player == nil {
		return 0, false
	}
	return *s.player, true
}

// IsAny reports whether the selector matches any match.
func (s Selector) IsAny() bool {
	return s.player == nil
}

// Equal reports whether two selectors select the same matches.
func (s Selector) Equal(other Selector) bool {
	if s.player == nil || other.player == nil {
		return s.player == nil && other.player == nil
	}
	return *s.player == *other.player
}

// String returns a human-readable form of the selector.
func (s Selector) String() string {
	if s.player == nil {
		return "any"
	}
	return "with-player:" + s.player.String()
}

type withPlayerJSON struct {
	WithPlayer AgentID `json:"WithPlayer"`
}

// MarshalJSON encodes the selector as the server expects it:
// "Any" or {"WithPlayer": id}.
func (s Selector) MarshalJSON() ([]byte, error) {
	if s.player == nil {
		return []byte(`"Any"`), nil
	}
	return json.Marshal(withPlayerJSON{WithPlayer: *s.player})
}

// UnmarshalJSON decodes "Any" or {"WithPlayer": id}.
func (s *Selector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
		}
		if tag != "Any" {
			return fmt.Errorf("%w: unknown tag %q", ErrInvalidSelector, tag)
		}
		s.player = nil
		return nil
	}

	var wp struct {
		WithPlayer *AgentID `json:"WithPlayer"`
	}
	if err := json.Unmarshal(data, &wp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	if wp.WithPlayer == nil {
		return fmt.Errorf("%w: missing WithPlayer", ErrInvalidSelector)
	}
	s.player = wp.WithPlayer
	return nil
}
