// Package hooks lets callers observe a spectator session.
//
// Hooks run on the session loop, in registration order, between renderer
// calls. A slow hook stalls rendering; hand work off to another goroutine
// if it may block.
package hooks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/types"
)

// MatchInfo describes a match the session connected to.
type MatchInfo struct {
	MatchID     uuid.UUID
	GameType    string
	Players     []types.AgentID
	Selector    types.Selector
	HistoryLen  int
	ConnectedAt time.Time
}

// UpdateEvent is one delta handed to the renderer.
type UpdateEvent struct {
	MatchID uuid.UUID
	Seq     int
	Delta   json.RawMessage

	// Replayed is true for deltas taken from the connect history.
	Replayed bool
}

// EndEvent is the end of a match.
type EndEvent struct {
	MatchID uuid.UUID
	Summary json.RawMessage
	Updates int
}

// ReconnectEvent is a scheduled reconnect.
type ReconnectEvent struct {
	Selector types.Selector
	Delay    time.Duration
	Reason   string
}

// ConnectHook is called after a connect envelope is rendered.
type ConnectHook func(ctx context.Context, match MatchInfo) error

// UpdateHook is called after a delta is rendered.
type UpdateHook func(ctx context.Context, update UpdateEvent) error

// EndHook is called after the end of a match is rendered.
type EndHook func(ctx context.Context, end EndEvent) error

// DecodeErrorHook is called when a payload cannot be decoded.
type DecodeErrorHook func(ctx context.Context, payload []byte, err error) error

// ReconnectHook is called when a reconnect is scheduled.
type ReconnectHook func(ctx context.Context, event ReconnectEvent) error

// Registry holds all registered hooks
type Registry struct {
	mu          sync.RWMutex
	connect     []ConnectHook
	update      []UpdateHook
	end         []EndHook
	decodeError []DecodeErrorHook
	reconnect   []ReconnectHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// OnConnect registers a hook called when a match is connected.
func (r *Registry) OnConnect(hook ConnectHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connect = append(r.connect, hook)
}

// OnUpdate registers a hook called for every rendered delta.
func (r *Registry) OnUpdate(hook UpdateHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.update = append(r.update, hook)
}

// OnEnd registers a hook called when a match ends.
func (r *Registry) OnEnd(hook EndHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.end = append(r.end, hook)
}

// OnDecodeError registers a hook called for undecodable payloads.
func (r *Registry) OnDecodeError(hook DecodeErrorHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodeError = append(r.decodeError, hook)
}

// OnReconnect registers a hook called when a reconnect is scheduled.
func (r *Registry) OnReconnect(hook ReconnectHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnect = append(r.reconnect, hook)
}

// TriggerConnect calls all registered connect hooks
func (r *Registry) TriggerConnect(ctx context.Context, match MatchInfo) error {
	r.mu.RLock()
	hooks := make([]ConnectHook, len(r.connect))
	copy(hooks, r.connect)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, match); err != nil {
			return err
		}
	}
	return nil
}

// TriggerUpdate calls all registered update hooks
func (r *Registry) TriggerUpdate(ctx context.Context, update UpdateEvent) error {
	r.mu.RLock()
	hooks := make([]UpdateHook, len(r.update))
	copy(hooks, r.update)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, update); err != nil {
			return err
		}
	}
	return nil
}

// TriggerEnd calls all registered end hooks
func (r *Registry) TriggerEnd(ctx context.Context, end EndEvent) error {
	r.mu.RLock()
	hooks := make([]EndHook, len(r.end))
	copy(hooks, r.end)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, end); err != nil {
			return err
		}
	}
	return nil
}

// TriggerDecodeError calls all registered decode-error hooks
func (r *Registry) TriggerDecodeError(ctx context.Context, payload []byte, decodeErr error) error {
	r.mu.RLock()
	hooks := make([]DecodeErrorHook, len(r.decodeError))
	copy(hooks, r.decodeError)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, payload, decodeErr); err != nil {
			return err
		}
	}
	return nil
}

// TriggerReconnect calls all registered reconnect hooks
func (r *Registry) TriggerReconnect(ctx context.Context, event ReconnectEvent) error {
	r.mu.RLock()
	hooks := make([]ReconnectHook, len(r.reconnect))
	copy(hooks, r.reconnect)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
