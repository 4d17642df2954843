package ui

import (
	"net/http"

	"github.com/youssefsiam38/arenawatch"
	"github.com/youssefsiam38/arenawatch/ui/api"
	"github.com/youssefsiam38/arenawatch/ui/frontend"
	"github.com/youssefsiam38/arenawatch/ui/service"
)

// Source is the live view a Handler shows. *arenawatch.Spectator
// satisfies it.
type Source = service.Source

// Handler returns an http.Handler serving the web view: the HTML pages at
// the root and the JSON API under /api/.
//
// source may be nil when only the archive is served; cfg.Store may be nil
// when only the live view is.
//
// Usage:
//
//	http.Handle("/watch/", http.StripPrefix("/watch", ui.Handler(spec, &ui.Config{BasePath: "/watch"})))
func Handler(source Source, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}

	// Invalid configuration is a programmer error.
	if err := cfg.validate(); err != nil {
		panic("ui: invalid configuration: " + err.Error())
	}

	svc := service.New(source, cfg.Store, &arenawatch.ReplayConfig{
		Registry:   cfg.Registry,
		Identities: cfg.Identities,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.NewRouter(svc, &api.Config{
		PageSize: cfg.PageSize,
		Logger:   cfg.Logger,
	})))
	mux.Handle("/", frontend.NewRouter(svc, &frontend.Config{
		BasePath:        cfg.BasePath,
		Title:           cfg.Title,
		PageSize:        cfg.PageSize,
		RefreshInterval: cfg.RefreshInterval,
		Logger:          cfg.Logger,
	}))
	return mux
}
