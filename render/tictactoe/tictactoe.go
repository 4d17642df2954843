// Package tictactoe renders 3×3 tic-tac-toe matches.
package tictactoe

import (
	"encoding/json"
	"fmt"

	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/types"
)

// GameType is the name the server uses for this game.
const GameType = "Tic Tac Toe"

// Cell states as sent by the server.
const (
	Cross  = "Cross"
	Nought = "Nought"
	Empty  = "Empty"
)

const (
	cellSize     = "200px"
	cellBorder   = "2px solid black"
	deltaGrid    = "grid_state"
	playerListID = "tic-tac-toe-player-list"
)

// lines are the eight winning lines in scan order: rows, columns, then the
// two diagonals.
var lines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},

	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},

	{{0, 0}, {1, 1}, {2, 2}},
	{{2, 0}, {1, 1}, {0, 2}},
}

// Board is a 3×3 grid of cell states.
type Board [3][3]string

// Renderer draws a tic-tac-toe match. X is the first player, O the second.
type Renderer struct {
	ids     render.Identities
	players []types.AgentID
	labels  [2]*render.Element
	started bool
}

// New creates a renderer.
func New(deps render.Deps) render.Renderer {
	return &Renderer{ids: deps.Identities}
}

// CellID returns the element ID of a board cell.
func CellID(r, c int) string {
	return fmt.Sprintf("ttt-cell-%d-%d", r, c)
}

// StartGame draws the player list and an empty board.
func (t *Renderer) StartGame(c *render.Container, players []types.AgentID) error {
	if len(players) < 2 {
		return fmt.Errorf("%w: tic-tac-toe needs 2 players, got %d", render.ErrBadPlayers, len(players))
	}
	t.players = players[:2]

	root := render.NewElement("div").
		SetStyle("display", "grid").
		SetStyle("grid-template-columns", "250px 1fr")

	playerList := render.NewElement("div").WithID(playerListID).
		SetStyle("width", "250px").
		SetStyle("display", "flex").
		SetStyle("flex-direction", "column").
		SetStyle("justify-content", "space-evenly").
		SetStyle("align-items", "center")

	t.labels[0] = render.PlayerLabel(t.ids, t.players[0], " (X)")
	t.labels[1] = render.PlayerLabel(t.ids, t.players[1], " (O)")
	vs := render.NewElement("span").AddClass("tic-tac-toe-vs").WithText("Versus")
	playerList.Append(t.labels[0], vs, t.labels[1])

	grid := render.NewElement("div").
		SetStyle("display", "grid").
		SetStyle("grid-template-columns", "200px 200px 200px").
		SetStyle("margin", "auto").
		SetStyle("justify-content", "center")

	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			cell := render.NewElement("div").WithID(CellID(r, col)).
				AddClass("tic-tac-toe-cell").
				SetStyle("width", cellSize).
				SetStyle("height", cellSize).
				SetStyle("box-sizing", "border-box")
			if col != 0 {
				cell.SetStyle("border-left", cellBorder)
			}
			if col != 2 {
				cell.SetStyle("border-right", cellBorder)
			}
			if r != 0 {
				cell.SetStyle("border-top", cellBorder)
			}
			if r != 2 {
				cell.SetStyle("border-bottom", cellBorder)
			}
			grid.Append(cell)
		}
	}

	root.Append(playerList, grid)
	c.Append(root)
	t.started = true
	return nil
}

// UpdateGame applies a grid_state delta. Other delta kinds are ignored.
func (t *Renderer) UpdateGame(c *render.Container, delta json.RawMessage) error {
	if !t.started {
		return render.ErrNotStarted
	}

	kind, data, err := render.DeltaKind(delta)
	if err != nil {
		return err
	}
	if kind != deltaGrid {
		return nil
	}

	board, err := ParseBoard(data)
	if err != nil {
		return err
	}

	xColour := render.ColourOf(t.ids, t.players[0])
	oColour := render.ColourOf(t.ids, t.players[1])
	render.RefreshPlayerLabel(t.labels[0], t.ids, t.players[0], " (X)")
	render.RefreshPlayerLabel(t.labels[1], t.ids, t.players[1], " (O)")

	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			cell := c.ByID(CellID(r, col))
			if cell == nil {
				return fmt.Errorf("tictactoe: cell %d,%d missing from container", r, col)
			}
			cell.RemoveClass("dimmed")

			switch board[r][col] {
			case Cross:
				cell.Text = "X"
				cell.AddClass("tic-tac-toe-cross")
				cell.Colour = xColour
			case Nought:
				cell.Text = "O"
				cell.AddClass("tic-tac-toe-nought")
				cell.Colour = oColour
			default:
				cell.Text = ""
				cell.Colour = ""
			}
		}
	}

	if line, ok := WinningLine(board); ok {
		for r := 0; r < 3; r++ {
			for col := 0; col < 3; col++ {
				if onLine(line, r, col) {
					continue
				}
				cell := c.ByID(CellID(r, col))
				cell.Colour = render.DimColour
				cell.AddClass("dimmed")
			}
		}
	}

	return nil
}

// ShouldWaitForUpdate always paces tic-tac-toe moves.
func (t *Renderer) ShouldWaitForUpdate(json.RawMessage) bool {
	return true
}

// EndGame shows the summary, if any.
func (t *Renderer) EndGame(c *render.Container, summary json.RawMessage) error {
	c.Root().AddClass("game-ended")
	if el := render.SummaryElement(summary); el != nil {
		c.Append(el)
	}
	return nil
}

// ParseBoard decodes and validates a 3×3 board.
func ParseBoard(data json.RawMessage) (Board, error) {
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return Board{}, fmt.Errorf("%w: grid_state: %v", render.ErrBadDelta, err)
	}
	if len(rows) != 3 {
		return Board{}, fmt.Errorf("%w: grid_state has %d rows", render.ErrBadDelta, len(rows))
	}

	var board Board
	for r, row := range rows {
		if len(row) != 3 {
			return Board{}, fmt.Errorf("%w: grid_state row %d has %d cells", render.ErrBadDelta, r, len(row))
		}
		for col, v := range row {
			switch v {
			case Cross, Nought, Empty:
				board[r][col] = v
			default:
				return Board{}, fmt.Errorf("%w: grid_state cell %q", render.ErrBadDelta, v)
			}
		}
	}
	return board, nil
}

// WinningLine returns the first completed line in scan order.
func WinningLine(b Board) ([3][2]int, bool) {
	for _, line := range lines {
		first := b[line[0][0]][line[0][1]]
		if first == Empty {
			continue
		}
		if first == b[line[1][0]][line[1][1]] && first == b[line[2][0]][line[2][1]] {
			return line, true
		}
	}
	return [3][2]int{}, false
}

func onLine(line [3][2]int, r, c int) bool {
	for _, p := range line {
		if p[0] == r && p[1] == c {
			return true
		}
	}
	return false
}
