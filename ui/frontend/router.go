package frontend

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/youssefsiam38/arenawatch/ui/service"
)

//go:embed templates/*
var templatesFS embed.FS

// Config holds frontend router configuration.
type Config struct {
	// BasePath is the URL prefix where the UI is mounted.
	// All navigation links will be prefixed with this path.
	BasePath string

	// Title is shown in the page header.
	Title string

	// PageSize for archive listings.
	PageSize int

	// RefreshInterval is how often /events checks the live view for
	// changes.
	RefreshInterval time.Duration

	// Logger for structured logging.
	Logger Logger
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// router holds the frontend router state.
type router struct {
	svc      *service.Service
	config   *Config
	view     *View
	renderer *renderer
}

// NewRouter creates a new frontend router.
func NewRouter(svc *service.Service, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = &Config{
			Title:           "arenawatch",
			PageSize:        service.DefaultLimit,
			RefreshInterval: 200 * time.Millisecond,
		}
	}

	baseTmpl := template.Must(template.New("").
		Funcs(templateFuncs()).
		ParseFS(templatesFS, "templates/base.html"))

	r := &router{
		svc:      svc,
		config:   cfg,
		view:     NewView(),
		renderer: newRenderer(baseTmpl, templatesFS, cfg),
	}

	mux := http.NewServeMux()

	// Live view
	mux.HandleFunc("GET /{$}", r.handleLive)
	mux.HandleFunc("GET /events", r.handleEvents)
	mux.HandleFunc("GET /fragments/view", r.handleFragmentView)

	// Archive
	mux.HandleFunc("GET /matches", r.handleMatches)
	mux.HandleFunc("GET /matches/{id}", r.handleMatchDetail)

	return withFrontendMiddleware(mux, cfg)
}

// withFrontendMiddleware wraps the handler with frontend-specific middleware.
func withFrontendMiddleware(handler http.Handler, cfg *Config) http.Handler {
	handler = frontendRecoveryMiddleware(handler, cfg.Logger)
	return handler
}

// frontendRecoveryMiddleware recovers from panics.
func frontendRecoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// templateFuncs returns custom template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatTime":     formatTime,
		"formatTimeAgo":  formatTimeAgo,
		"stateColor":     stateColor,
		"players":        players,
		"truncate":       truncate,
		"shortID":        shortID,
	}
}
