// Package service provides the data layer shared by the web view's HTML
// frontend and JSON API: the live spectator view and, when a store is
// configured, the match archive and replays.
package service
