// Package render defines the game renderer contract, the registry mapping
// game types to renderers, and the element tree they draw into.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/youssefsiam38/arenawatch/types"
)

// Colours shared by renderers.
const (
	// FallbackColour is shown for agents whose colour is not known yet.
	FallbackColour = "#FF0000"

	// DimColour is applied to de-emphasised cells.
	DimColour = "#777"
)

// Errors returned by renderers and the registry.
var (
	// ErrUnknownGame is returned when no renderer is registered for a game type.
	ErrUnknownGame = errors.New("unknown game type")

	// ErrDuplicateGame is returned when a game type is registered twice.
	ErrDuplicateGame = errors.New("game type already registered")

	// ErrBadDelta is returned when a delta does not have the expected shape.
	ErrBadDelta = errors.New("malformed delta")

	// ErrBadPlayers is returned when a match has the wrong number of players.
	ErrBadPlayers = errors.New("unexpected player list")

	// ErrNotStarted is returned when UpdateGame is called before StartGame.
	ErrNotStarted = errors.New("game not started")
)

// Renderer draws one game type.
//
// Calls never overlap. StartGame is called once per match on a cleared
// container; UpdateGame must tolerate deltas that rewrite cells with the
// values they already hold.
type Renderer interface {
	// StartGame builds the initial scaffold.
	StartGame(c *Container, players []types.AgentID) error

	// UpdateGame applies one delta.
	UpdateGame(c *Container, delta json.RawMessage) error

	// ShouldWaitForUpdate reports whether the delta is subject to pacing.
	// It must be pure.
	ShouldWaitForUpdate(delta json.RawMessage) bool

	// EndGame draws the terminal state. Summary may be nil.
	EndGame(c *Container, summary json.RawMessage) error
}

// Identities resolves agent display data. Lookups never block: unknown
// agents get a fallback and are fetched in the background.
type Identities interface {
	ColourOf(id types.AgentID) string
	NameOf(id types.AgentID) (string, bool)
}

// Deps are the collaborators handed to a renderer constructor.
type Deps struct {
	Identities Identities
}

// Factory builds a fresh renderer for one match.
type Factory func(deps Deps) Renderer

// Registry maps game type names to renderer factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for a game type.
func (r *Registry) Register(gameType string, factory Factory) error {
	if gameType == "" || factory == nil {
		return fmt.Errorf("render: game type and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[gameType]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateGame, gameType)
	}
	r.factories[gameType] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(gameType string, factory Factory) {
	if err := r.Register(gameType, factory); err != nil {
		panic(err)
	}
}

// New builds a renderer for the game type.
func (r *Registry) New(gameType string, deps Deps) (Renderer, error) {
	r.mu.RLock()
	factory, ok := r.factories[gameType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameType)
	}
	return factory(deps), nil
}

// GameTypes returns the registered game types, sorted.
func (r *Registry) GameTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlayerLabel builds the link element naming an agent.
func PlayerLabel(ids Identities, id types.AgentID, suffix string) *Element {
	el := NewElement("a").AddClass("playing-agent-name")
	el.Href = "/pages/agent.html?agent=" + id.String()
	RefreshPlayerLabel(el, ids, id, suffix)
	return el
}

// RefreshPlayerLabel re-reads the agent's name and colour into a label.
func RefreshPlayerLabel(el *Element, ids Identities, id types.AgentID, suffix string) {
	el.Colour = ColourOf(ids, id)
	el.Text = DisplayName(ids, id) + suffix
}

// DisplayName returns the agent name, or "#<id>" while it is unknown.
func DisplayName(ids Identities, id types.AgentID) string {
	if name, ok := nameOf(ids, id); ok {
		return name
	}
	return "#" + id.String()
}

// ColourOf returns the agent colour, or FallbackColour without identities.
func ColourOf(ids Identities, id types.AgentID) string {
	if ids == nil {
		return FallbackColour
	}
	return ids.ColourOf(id)
}

func nameOf(ids Identities, id types.AgentID) (string, bool) {
	if ids == nil {
		return "", false
	}
	return ids.NameOf(id)
}

// ErrorElement builds the element shown when a match view cannot render.
func ErrorElement(message string) *Element {
	return NewElement("div").WithID("game-error").AddClass("game-error").WithText(message)
}

// SummaryElement builds the end-of-match summary element, or nil when the
// match ended without one. String summaries are shown as is; any other JSON
// value is shown in its compact encoding.
func SummaryElement(summary json.RawMessage) *Element {
	text := SummaryText(summary)
	if text == "" {
		return nil
	}
	return NewElement("div").WithID("game-summary").AddClass("game-summary").WithText(text)
}

// SummaryText extracts display text from an end summary.
func SummaryText(summary json.RawMessage) string {
	trimmed := strings.TrimSpace(string(summary))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(summary, &s); err == nil {
		return s
	}
	return trimmed
}

// DeltaKind returns the "kind" tag of a tagged {kind, data} delta.
func DeltaKind(delta json.RawMessage) (string, json.RawMessage, error) {
	var tagged struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(delta, &tagged); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDelta, err)
	}
	if tagged.Kind == "" {
		return "", nil, fmt.Errorf("%w: missing kind", ErrBadDelta)
	}
	return tagged.Kind, tagged.Data, nil
}
