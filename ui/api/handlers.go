package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/types"
	"github.com/youssefsiam38/arenawatch/ui/service"
)

// Response wraps all API responses.
type Response struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
	Meta  *Meta     `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains pagination metadata.
type Meta struct {
	Count int `json:"count"`
	Limit int `json:"limit,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

// writeJSONWithMeta writes a JSON response with metadata.
func writeJSONWithMeta(w http.ResponseWriter, status int, data any, meta *Meta) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data, Meta: meta})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Error: &APIError{Code: code, Message: message},
	})
}

// writeServiceError maps service errors to HTTP statuses.
func (rt *router) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, service.ErrArchiveDisabled), errors.Is(err, service.ErrNoSource):
		writeError(w, http.StatusNotImplemented, "not_configured", err.Error())
	default:
		if rt.config.Logger != nil {
			rt.config.Logger.Error("api request failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

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

func (rt *router) handleState(w http.ResponseWriter, r *http.Request) {
	view, err := rt.svc.Live(r.Context())
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *router) handleListMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.MatchListParams{
		GameType: q.Get("game_type"),
		Status:   q.Get("status"),
		Limit:    parseInt(r, "limit", rt.config.PageSize),
	}
	if v := q.Get("player"); v != "" {
		id, err := types.ParseAgentID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid player")
			return
		}
		params.PlayerID = id
	}
	if v := q.Get("before"); v != "" {
		before, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "before must be RFC 3339")
			return
		}
		params.Before = &before
	}

	matches, err := rt.svc.ListMatches(r.Context(), params)
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSONWithMeta(w, http.StatusOK, matches, &Meta{Count: len(matches), Limit: params.Limit})
}

func (rt *router) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}

	detail, err := rt.svc.GetMatch(r.Context(), id)
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (rt *router) handleReplayMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}

	view, err := rt.svc.ReplayMatch(r.Context(), id)
	if err != nil {
		rt.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
