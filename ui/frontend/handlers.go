package frontend

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/types"
	"github.com/youssefsiam38/arenawatch/ui/service"
)

// parseInt parses an integer from a query parameter with a default.
func parseInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return service.ValidateLimit(i)
}

func (rt *router) logError(msg string, err error) {
	if rt.config.Logger != nil {
		rt.config.Logger.Warn(msg, "error", err.Error())
	}
}

func (rt *router) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "Match not found", http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidParams):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrArchiveDisabled), errors.Is(err, service.ErrNoSource):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		rt.logError("request failed", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Live view handlers

func (rt *router) handleLive(w http.ResponseWriter, r *http.Request) {
	live, err := rt.svc.Live(r.Context())
	if err != nil {
		rt.serviceError(w, err)
		return
	}
	body, err := rt.view.HTML(live.Root)
	if err != nil {
		rt.serviceError(w, err)
		return
	}

	data := map[string]any{
		"Live": live,
		"View": body,
	}
	if err := rt.renderer.render(w, r, "live.html", "Live", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleFragmentView serves the drawing alone, for clients without SSE.
func (rt *router) handleFragmentView(w http.ResponseWriter, r *http.Request) {
	live, err := rt.svc.Live(r.Context())
	if err != nil {
		rt.serviceError(w, err)
		return
	}
	body, err := rt.view.HTML(live.Root)
	if err != nil {
		rt.serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-View-Version", strconv.FormatUint(live.Version, 10))
	_, _ = io.WriteString(w, string(body))
}

// handleEvents streams the drawing as server-sent events. A "view" event
// carries the HTML and a "state" event the session state; both are sent on
// connect and whenever the view's version moves.
func (rt *router) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	if _, err := rt.svc.Live(r.Context()); err != nil {
		rt.serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(rt.config.RefreshInterval)
	defer ticker.Stop()

	var last uint64
	sent := false
	for {
		if v := rt.svc.Version(); !sent || v != last {
			live, err := rt.svc.Live(r.Context())
			if err != nil {
				rt.logError("live view", err)
				return
			}
			body, err := rt.view.HTML(live.Root)
			if err != nil {
				rt.logError("render view", err)
				return
			}
			if err := writeEvent(w, "state", live.State.String()); err != nil {
				return
			}
			if err := writeEvent(w, "view", string(body)); err != nil {
				return
			}
			flusher.Flush()
			last, sent = live.Version, true
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writeEvent writes one SSE event. Each line of data gets its own data
// field.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Archive handlers

func (rt *router) handleMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.MatchListParams{
		GameType: q.Get("game_type"),
		Status:   q.Get("status"),
		Limit:    parseInt(r, "limit", rt.config.PageSize),
	}
	if v := q.Get("player"); v != "" {
		id, err := types.ParseAgentID(v)
		if err != nil {
			http.Error(w, "Invalid player", http.StatusBadRequest)
			return
		}
		params.PlayerID = id
	}

	matches, err := rt.svc.ListMatches(r.Context(), params)
	if err != nil {
		rt.serviceError(w, err)
		return
	}

	data := map[string]any{
		"Matches": matches,
		"Filter":  params,
	}
	if err := rt.renderer.render(w, r, "matches.html", "Matches", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (rt *router) handleMatchDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid match ID", http.StatusBadRequest)
		return
	}

	replay, err := rt.svc.ReplayMatch(r.Context(), id)
	if err != nil {
		rt.serviceError(w, err)
		return
	}
	var body template.HTML
	if body, err = rt.view.HTML(replay.Root); err != nil {
		rt.serviceError(w, err)
		return
	}

	data := map[string]any{
		"Replay": replay,
		"View":   body,
	}
	if err := rt.renderer.render(w, r, "match.html", "Match "+shortID(id), data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
