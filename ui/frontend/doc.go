// Package frontend provides the server-rendered pages of the web view.
//
// # Routes
//
//   - GET / - The live drawing, kept current over /events
//   - GET /events - SSE stream of "state" and "view" events
//   - GET /fragments/view - The drawing alone, for polling clients
//   - GET /matches - Archived matches
//   - GET /matches/{id} - Replay of an archived match
//
// Element trees are converted to HTML with golang.org/x/net/html and
// sanitized with bluemonday; summaries are rendered from markdown with
// goldmark.
package frontend
