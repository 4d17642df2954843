// Package ui provides an embedded web view for arenawatch.
//
// Handler serves the live drawing of a Spectator, kept current in the
// browser over server-sent events, and, when a store is configured, the
// match archive with replays. JSON endpoints are mounted under /api/.
//
// # Quick Start
//
//	spec, _ := arenawatch.NewSpectator(transport.NewSSE(baseURL, nil), nil)
//	_ = spec.Start(ctx)
//	_ = spec.Connect(types.AnyMatch())
//
//	mux := http.NewServeMux()
//	mux.Handle("/", ui.Handler(spec, nil))
//	http.ListenAndServe(":8080", mux)
//
// # Configuration
//
//	cfg := &ui.Config{
//	    BasePath:        "/watch",
//	    Store:           store,                  // enables /matches
//	    RefreshInterval: 100 * time.Millisecond,
//	}
//
// # Framework Integration
//
// The handler is a standard http.Handler:
//
//	r := chi.NewRouter()
//	r.Mount("/watch", http.StripPrefix("/watch", ui.Handler(spec, cfg)))
package ui
