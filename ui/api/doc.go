// Package api provides the JSON endpoints of the web view.
//
// # Endpoints
//
// Live view:
//   - GET /state - Current drawing, session state and match
//
// Archive (when a store is configured):
//   - GET /matches - List archived matches (game_type, status, player, before, limit)
//   - GET /matches/{id} - Match with its deltas
//   - GET /matches/{id}/replay - Final drawing of a replay
//
// Responses are wrapped as {"data": ..., "meta": ...} or {"error": {...}}.
package api
