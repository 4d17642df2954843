// Package arenawatch is a spectator client for a competitive agent gaming
// platform.
//
// A Spectator opens a match stream for a selector (any match, or the matches
// of one agent), draws the current match into a render.Container, and moves
// on to the next match when the stream ends. Deltas are released to the
// game renderer at a bounded cadence so fast matches stay watchable.
//
// # Key Features
//
//   - Server-sent event and WebSocket transports
//   - Built-in renderers for Tic Tac Toe and Snake, plus a registry for more
//   - Paced rendering with a minimum delay between moves
//   - Automatic reconnect after a match ends or the stream drops
//   - Cached agent names and colours resolved in the background
//   - Optional PostgreSQL archive of watched matches, with replay
//   - Hooks and Prometheus metrics for observability
//
// # Quick Start
//
//	cache := lookup.New(lookup.NewAPIClient(baseURL, nil), nil)
//	spec, err := arenawatch.NewSpectator(
//	    transport.NewSSE(baseURL, nil),
//	    nil,
//	    arenawatch.WithIdentities(cache),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := spec.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer spec.Stop(ctx)
//
//	_ = spec.Connect(types.WithPlayer(42))
//
// Snapshot returns a copy of the drawing at any time; Version tells a
// poller whether it may have changed.
//
// # Custom Games
//
// Implement render.Renderer and register a factory for the server's game
// type name:
//
//	reg := arenawatch.DefaultRegistry()
//	reg.MustRegister("Connect Four", func(deps render.Deps) render.Renderer {
//	    return connectfour.New(deps.Identities)
//	})
//	spec, _ := arenawatch.NewSpectator(dialer, nil, arenawatch.WithRegistry(reg))
//
// # Archiving and Replay
//
// An archive.Recorder attached to the spectator's hooks stores every match
// it shows. Replay redraws a stored match on a virtual clock:
//
//	rec := archive.NewRecorder(store, nil)
//	rec.Attach(spec.Hooks())
//	_ = rec.Start(ctx)
//
//	result, err := arenawatch.Replay(ctx, store, matchID, nil)
//
// A replay draws the same board whether the deltas are fed as connect
// history or one by one.
package arenawatch
