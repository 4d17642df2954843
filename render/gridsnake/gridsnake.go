// Package gridsnake renders multi-player snake matches played on a grid.
//
// Deltas are tagged {kind, data} values:
//
//	dimensions  [rows, cols]                 allocate the board
//	grid        [[v, ...], ...]              repaint every cell
//	upd         [[v, r0, c0, r1, c1, ...]]   point writes
//	scr         [d0, d1, ...]                per-player score deltas
//	scores      [s0, s1, ...]                absolute scores
//
// Cell values are -1 for food, 0 for empty and n > 0 for player n-1. The
// notice kinds init_error, player_error, wall_crash, head_butt and
// snake_crash carry a 1-based player number and append to the match log.
package gridsnake

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/types"
)

// GameType is the name the server uses for this game.
const GameType = "Snake"

const (
	// DefaultPixelBudget is the board width and height in pixels.
	DefaultPixelBudget = 600

	// DefaultEmptyColour is painted on empty cells.
	DefaultEmptyColour = "#EEEEEE"

	// DefaultFoodColour is painted on food cells.
	DefaultFoodColour = "#2E8B57"

	// Food is the cell value of a food square.
	Food = -1

	// MaxDimension bounds the rows and columns a board may have.
	MaxDimension = 512
)

const (
	kindDimensions = "dimensions"
	kindGrid       = "grid"
	kindUpd        = "upd"
	kindScr        = "scr"
	kindScores     = "scores"

	boardID = "snake-board"
	logID   = "snake-log"
)

var notices = map[string]string{
	"init_error":   "%s failed to start",
	"player_error": "%s made an invalid move",
	"wall_crash":   "%s crashed into a wall",
	"head_butt":    "%s hit another snake head on",
	"snake_crash":  "%s crashed into a snake",
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPixelBudget sets the board size in pixels.
func WithPixelBudget(px int) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.pixelBudget = px
		}
	}
}

// WithColours overrides the empty and food colours.
func WithColours(empty, food string) Option {
	return func(r *Renderer) {
		if empty != "" {
			r.emptyColour = empty
		}
		if food != "" {
			r.foodColour = food
		}
	}
}

// Renderer draws a snake match.
type Renderer struct {
	ids         render.Identities
	pixelBudget int
	emptyColour string
	foodColour  string

	players []types.AgentID
	labels  []*render.Element
	scoreEl []*render.Element
	scores  []float64

	rows, cols int
	values     [][]int
	cells      [][]*render.Element
	painted    []string

	board   *render.Element
	log     *render.Element
	started bool
}

// New creates a renderer with default options.
func New(deps render.Deps) render.Renderer {
	return newRenderer(deps)
}

// Factory returns a render.Factory applying the options to each renderer.
func Factory(opts ...Option) render.Factory {
	return func(deps render.Deps) render.Renderer {
		return newRenderer(deps, opts...)
	}
}

func newRenderer(deps render.Deps, opts ...Option) *Renderer {
	r := &Renderer{
		ids:         deps.Identities,
		pixelBudget: DefaultPixelBudget,
		emptyColour: DefaultEmptyColour,
		foodColour:  DefaultFoodColour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CellID returns the element ID of a board cell.
func CellID(r, c int) string {
	return fmt.Sprintf("snake-cell-%d-%d", r, c)
}

// ScoreID returns the element ID of a player's score.
func ScoreID(i int) string {
	return "snake-score-" + strconv.Itoa(i)
}

// StartGame draws the scoreboard, an empty board and the match log.
func (s *Renderer) StartGame(c *render.Container, players []types.AgentID) error {
	if len(players) == 0 {
		return fmt.Errorf("%w: snake needs at least one player", render.ErrBadPlayers)
	}
	s.players = players
	s.scores = make([]float64, len(players))
	s.painted = make([]string, len(players))
	s.labels = make([]*render.Element, len(players))
	s.scoreEl = make([]*render.Element, len(players))

	root := render.NewElement("div").
		SetStyle("display", "grid").
		SetStyle("grid-template-columns", "250px 1fr")

	scoreboard := render.NewElement("div").WithID("snake-scoreboard").
		SetStyle("display", "flex").
		SetStyle("flex-direction", "column").
		SetStyle("justify-content", "space-evenly")

	for i, id := range players {
		s.labels[i] = render.PlayerLabel(s.ids, id, "")
		s.painted[i] = s.labels[i].Colour
		s.scoreEl[i] = render.NewElement("span").WithID(ScoreID(i)).AddClass("snake-score").WithText("0")
		row := render.NewElement("div").AddClass("snake-player").Append(s.labels[i], s.scoreEl[i])
		scoreboard.Append(row)
	}

	s.board = render.NewElement("div").WithID(boardID).
		SetStyle("display", "grid").
		SetStyle("margin", "auto")
	s.log = render.NewElement("ul").WithID(logID).AddClass("snake-log")

	root.Append(scoreboard, s.board)
	c.Append(root, s.log)
	s.started = true
	return nil
}

// UpdateGame applies one delta. Unknown kinds are ignored.
func (s *Renderer) UpdateGame(c *render.Container, delta json.RawMessage) error {
	if !s.started {
		return render.ErrNotStarted
	}

	kind, data, err := render.DeltaKind(delta)
	if err != nil {
		return err
	}

	s.refreshPlayers()

	switch kind {
	case kindDimensions:
		var dims []int
		if err := json.Unmarshal(data, &dims); err != nil || len(dims) != 2 {
			return fmt.Errorf("%w: dimensions: want [rows, cols], got %s", render.ErrBadDelta, data)
		}
		if err := s.allocate(dims[0], dims[1]); err != nil {
			return err
		}
		c.Reindex()
		return nil

	case kindGrid:
		return s.applyGrid(c, data)

	case kindUpd:
		return s.applyUpd(data)

	case kindScr:
		deltas, err := parseScores(kind, data)
		if err != nil {
			return err
		}
		s.growScores(len(deltas))
		for i, d := range deltas {
			s.scores[i] += d
		}
		s.drawScores()
		return nil

	case kindScores:
		totals, err := parseScores(kind, data)
		if err != nil {
			return err
		}
		s.growScores(len(totals))
		copy(s.scores, totals)
		clear(s.scores[len(totals):])
		s.drawScores()
		return nil
	}

	if format, ok := notices[kind]; ok {
		return s.appendNotice(kind, format, data)
	}
	return nil
}

// ShouldWaitForUpdate paces only upd frames. Frames that cannot be decoded
// are paced as well.
func (s *Renderer) ShouldWaitForUpdate(delta json.RawMessage) bool {
	kind, _, err := render.DeltaKind(delta)
	if err != nil {
		return true
	}
	return kind == kindUpd
}

// EndGame shows the summary, if any.
func (s *Renderer) EndGame(c *render.Container, summary json.RawMessage) error {
	c.Root().AddClass("game-ended")
	if el := render.SummaryElement(summary); el != nil {
		c.Append(el)
	}
	return nil
}

// Scores returns a copy of the running totals.
func (s *Renderer) Scores() []float64 {
	out := make([]float64, len(s.scores))
	copy(out, s.scores)
	return out
}

// Dimensions returns the board size, or zeros before it is known.
func (s *Renderer) Dimensions() (rows, cols int) {
	return s.rows, s.cols
}

// Value returns the cell value at r, c.
func (s *Renderer) Value(r, c int) (int, bool) {
	if r < 0 || r >= s.rows || c < 0 || c >= s.cols {
		return 0, false
	}
	return s.values[r][c], true
}

func (s *Renderer) allocate(rows, cols int) error {
	if rows <= 0 || cols <= 0 || rows > MaxDimension || cols > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d", render.ErrBadDelta, rows, cols)
	}

	size := s.pixelBudget / max(rows, cols)
	if size < 1 {
		size = 1
	}
	px := strconv.Itoa(size) + "px"

	s.rows, s.cols = rows, cols
	s.values = make([][]int, rows)
	s.cells = make([][]*render.Element, rows)
	s.board.Children = nil
	s.board.SetStyle("grid-template-columns", fmt.Sprintf("repeat(%d, %s)", cols, px))

	for r := 0; r < rows; r++ {
		s.values[r] = make([]int, cols)
		s.cells[r] = make([]*render.Element, cols)
		for col := 0; col < cols; col++ {
			cell := render.NewElement("div").WithID(CellID(r, col)).
				AddClass("snake-cell").
				SetStyle("width", px).
				SetStyle("height", px)
			cell.Colour = s.emptyColour
			s.cells[r][col] = cell
			s.board.Append(cell)
		}
	}
	return nil
}

func (s *Renderer) applyGrid(c *render.Container, data json.RawMessage) error {
	var grid [][]int
	if err := json.Unmarshal(data, &grid); err != nil {
		return fmt.Errorf("%w: grid: %v", render.ErrBadDelta, err)
	}
	if len(grid) == 0 {
		return fmt.Errorf("%w: grid is empty", render.ErrBadDelta)
	}
	for r, row := range grid {
		if len(row) != len(grid[0]) {
			return fmt.Errorf("%w: grid row %d has %d cells, want %d", render.ErrBadDelta, r, len(row), len(grid[0]))
		}
	}

	if s.rows == 0 {
		if err := s.allocate(len(grid), len(grid[0])); err != nil {
			return err
		}
		c.Reindex()
	}
	if len(grid) != s.rows || len(grid[0]) != s.cols {
		return fmt.Errorf("%w: grid is %dx%d, board is %dx%d", render.ErrBadDelta, len(grid), len(grid[0]), s.rows, s.cols)
	}

	for r, row := range grid {
		for col, v := range row {
			s.set(r, col, v)
		}
	}
	return nil
}

func (s *Renderer) applyUpd(data json.RawMessage) error {
	if s.rows == 0 {
		return fmt.Errorf("%w: upd before dimensions", render.ErrBadDelta)
	}

	var groups [][]int
	if err := json.Unmarshal(data, &groups); err != nil {
		return fmt.Errorf("%w: upd: %v", render.ErrBadDelta, err)
	}

	// Validate everything first so a bad group leaves the board untouched.
	for i, g := range groups {
		if len(g)%2 != 1 {
			return fmt.Errorf("%w: upd group %d has %d values", render.ErrBadDelta, i, len(g))
		}
		for j := 1; j < len(g); j += 2 {
			if g[j] < 0 || g[j] >= s.rows || g[j+1] < 0 || g[j+1] >= s.cols {
				return fmt.Errorf("%w: upd group %d writes outside the board at %d,%d", render.ErrBadDelta, i, g[j], g[j+1])
			}
		}
	}

	for _, g := range groups {
		for j := 1; j < len(g); j += 2 {
			s.set(g[j], g[j+1], g[0])
		}
	}
	return nil
}

func (s *Renderer) set(r, c, v int) {
	s.values[r][c] = v
	s.cells[r][c].Colour = s.colourFor(v)
}

func (s *Renderer) colourFor(v int) string {
	switch {
	case v == Food:
		return s.foodColour
	case v <= 0:
		return s.emptyColour
	case v <= len(s.players):
		return render.ColourOf(s.ids, s.players[v-1])
	default:
		return render.FallbackColour
	}
}

// refreshPlayers re-reads identities and repaints a player's cells once
// their colour resolves.
func (s *Renderer) refreshPlayers() {
	for i, id := range s.players {
		render.RefreshPlayerLabel(s.labels[i], s.ids, id, "")
		colour := s.labels[i].Colour
		if colour == s.painted[i] {
			continue
		}
		s.painted[i] = colour
		for r := range s.values {
			for c, v := range s.values[r] {
				if v == i+1 {
					s.cells[r][c].Colour = colour
				}
			}
		}
	}
}

func (s *Renderer) growScores(n int) {
	for len(s.scores) < n {
		s.scores = append(s.scores, 0)
	}
}

func (s *Renderer) drawScores() {
	for i, el := range s.scoreEl {
		el.Text = strconv.FormatFloat(s.scores[i], 'f', -1, 64)
	}
}

func (s *Renderer) appendNotice(kind, format string, data json.RawMessage) error {
	var player int
	if err := json.Unmarshal(data, &player); err != nil {
		return fmt.Errorf("%w: %s: %v", render.ErrBadDelta, kind, err)
	}

	who := "player " + strconv.Itoa(player)
	if player >= 1 && player <= len(s.players) {
		who = render.DisplayName(s.ids, s.players[player-1])
	}

	line := render.NewElement("li").AddClass("snake-notice").AddClass("snake-" + kind).
		WithText(fmt.Sprintf(format, who))
	s.log.Append(line)
	return nil
}

func parseScores(kind string, data json.RawMessage) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", render.ErrBadDelta, kind, err)
	}
	return v, nil
}
