package arenawatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/hooks"
	"github.com/youssefsiam38/arenawatch/pacer"
	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/runstate"
	"github.com/youssefsiam38/arenawatch/storage"
	"github.com/youssefsiam38/arenawatch/streaming"
)

// ReplayConfig controls how an archived match is redrawn.
type ReplayConfig struct {
	// Registry maps game types to renderers. Default: DefaultRegistry()
	Registry *render.Registry

	// Identities resolves agent names and colours.
	Identities render.Identities

	// Container receives the drawing. Default: a new container
	Container *render.Container

	// Hooks observe the replayed session.
	Hooks *hooks.Registry

	// Live feeds every delta as its own update after an empty connect,
	// the way a spectator present from the start sees the match. By
	// default deltas arrive as connect history.
	Live bool

	// MinDelay is the virtual pacing delay. Default: DefaultMinDelay
	MinDelay time.Duration

	Logger Logger
}

// ReplayResult describes a finished replay.
type ReplayResult struct {
	Match     *storage.Match
	Container *render.Container

	// State is the session state once every entry was released: ended for
	// finished matches, live for abandoned or still running ones.
	State runstate.SessionState

	// Duration is the virtual time the pacer needed.
	Duration time.Duration

	// Errors holds renderer failures. The replay carries on past them, as
	// a live session does.
	Errors []error
}

// Replay redraws an archived match. Deltas are released through a session
// on a virtual clock, so pacing rules apply without waiting in real time.
func Replay(ctx context.Context, store storage.Store, matchID uuid.UUID, config *ReplayConfig) (*ReplayResult, error) {
	if config == nil {
		config = &ReplayConfig{}
	}

	match, err := store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, NewMatchError("Replay", matchID, err)
	}
	deltas, err := store.ListDeltas(ctx, matchID)
	if err != nil {
		return nil, NewMatchError("Replay", matchID, err)
	}

	start := match.StartedAt
	clock := pacer.NewManualClock(start)

	var errs []error
	session := NewSession(&SessionConfig{
		Context:    ctx,
		Registry:   config.Registry,
		Identities: config.Identities,
		Container:  config.Container,
		Clock:      clock,
		MinDelay:   config.MinDelay,
		Hooks:      config.Hooks,
		Logger:     config.Logger,
		OnError: func(err error) {
			errs = append(errs, err)
		},
	})
	defer session.Close()

	if err := session.Connect(match.Selector); err != nil {
		return nil, err
	}
	gen := session.Generation()

	connect := &streaming.ConnectData{GameType: match.GameType, Players: match.Players}
	if !config.Live {
		connect.History = make([]json.RawMessage, 0, len(deltas))
		for _, d := range deltas {
			connect.History = append(connect.History, d.Data)
		}
	}
	if err := session.HandleEnvelope(gen, &streaming.Envelope{Kind: streaming.KindConnect, Connect: connect}); err != nil {
		return nil, NewMatchError("Replay", matchID, err)
	}
	if config.Live {
		for _, d := range deltas {
			if err := session.HandleEnvelope(gen, &streaming.Envelope{Kind: streaming.KindUpdate, Delta: d.Data}); err != nil {
				return nil, NewMatchError("Replay", matchID, err)
			}
		}
	}
	if match.Status == runstate.MatchStatusFinished {
		if err := session.HandleEnvelope(gen, &streaming.Envelope{Kind: streaming.KindEnd, Summary: match.Summary}); err != nil {
			return nil, NewMatchError("Replay", matchID, err)
		}
	}

	// Until the end is released the only timer is the pacer's, so jumping
	// to the next deadline releases exactly one step at a time.
	for session.Draining() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, ok := clock.NextDeadline()
		if !ok {
			break
		}
		clock.Advance(next.Sub(clock.Now()))
	}

	result := &ReplayResult{
		Match:     match,
		Container: session.Container(),
		State:     session.State(),
		Duration:  clock.Now().Sub(start),
		Errors:    errs,
	}
	// The reconnect a finished match schedules is never due here.
	if result.State == runstate.SessionStateCoolingDown {
		result.State = runstate.SessionStateEnded
	}
	return result, nil
}

// ReplayAll redraws every archived match matching params, newest first,
// calling fn with each result.
func ReplayAll(ctx context.Context, store storage.Store, params *storage.ListMatchesParams, config *ReplayConfig, fn func(*ReplayResult) error) error {
	matches, err := store.ListMatches(ctx, params)
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	for _, m := range matches {
		cfg := ReplayConfig{}
		if config != nil {
			cfg = *config
		}
		cfg.Container = render.NewContainer()

		result, err := Replay(ctx, store, m.ID, &cfg)
		if err != nil {
			return err
		}
		if err := fn(result); err != nil {
			return err
		}
	}
	return nil
}
